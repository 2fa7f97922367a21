// Package parsers classifies normalized event blocks into typed events.
// Each Parser advertises the titles it claims and a parser-id/version pair
// recorded on every event it emits, so a later change to a parser's
// regexes doesn't silently reinterpret history.
package parsers

import (
	"strconv"
	"strings"

	"github.com/xpnow/bugpanel/internal/normalize"
	"github.com/xpnow/bugpanel/internal/rawblock"
)

// EventData is one typed event extracted from a block's payload line.
type EventData struct {
	EventType     string
	ParserID      string
	ParserVersion string
	SrcPlayerID   string
	DstPlayerID   string
	Item          string
	Container     string
	Money         *int64
	Qty           *int64
	Metadata      map[string]any
	Ref           rawblock.Ref
}

// Parser recognizes and extracts events from one family of event blocks.
type Parser interface {
	ID() string
	Version() string
	Match(block normalize.Block) bool
	Parse(block normalize.Block) []EventData
}

// Registry is the ordered set of parsers dispatched against every block,
// mirroring the upstream worker's PARSERS list. Order matters only in
// that it determines parser-id attribution when more than one parser
// would match the same title, which the set below never does.
var Registry = []Parser{
	bankParser{},
	offerParser{},
	phoneParser{},
	dropItemParser{},
	containerParser{},
	connectParser{},
	adminParser{},
	jewelryParser{},
}

// Dispatch runs every matching parser in Registry against block and
// returns the union of their emitted events, tagging each with the
// parser's id and version.
func Dispatch(block normalize.Block) []EventData {
	var events []EventData
	for _, p := range Registry {
		if !p.Match(block) {
			continue
		}
		for _, e := range p.Parse(block) {
			e.ParserID = p.ID()
			e.ParserVersion = p.Version()
			events = append(events, e)
		}
	}
	return events
}

// ParseIntValue parses a formatted monetary/quantity string such as
// "12.345,00$" into its minor-unit integer value (1234500) by stripping
// everything but digits. Returns 0 for a string with no digits at all.
func ParseIntValue(value string) int64 {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, "$", "")
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func ptr(n int64) *int64 { return &n }

func matchesAnyTitle(block normalize.Block, titles ...string) bool {
	if !block.HasTitle {
		return false
	}
	for _, t := range titles {
		if block.Title == t {
			return true
		}
	}
	return false
}
