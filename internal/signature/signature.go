// Package signature normalizes payload lines that matched no parser into
// a stable signature, so operators can see unrecognized line shapes
// aggregated rather than one row per occurrence.
package signature

import (
	"regexp"
	"strings"
)

var digitRun = regexp.MustCompile(`\d+`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize collapses every run of digits in text to "<#>", squashes
// repeated whitespace, and lowercases the result. Applying Normalize to
// its own output is a no-op.
func Normalize(text string) string {
	s := digitRun.ReplaceAllString(text, "<#>")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}
