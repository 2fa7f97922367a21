// Package normalize turns a stream of raw transcript lines into
// timestamped blocks: a title, a resolved occurrence time with a quality
// tier, and the cleaned payload lines that make up the block's body.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/xpnow/bugpanel/internal/rawblock"
)

// Quality classifies how an occurred-at timestamp was resolved.
type Quality string

const (
	QualityAbsolute Quality = "ABSOLUTE"
	QualityRelative Quality = "RELATIVE"
	QualityTimeOnly Quality = "TIME_ONLY"
	QualityUnknown  Quality = "UNKNOWN"
)

// PayloadLine is one cleaned line of a block's body, carrying the evidence
// pointer back to its exact raw line.
type PayloadLine struct {
	Text string
	Ref  rawblock.Ref
}

// Block is one normalized event block: an optional title, an optionally
// resolved timestamp, and its payload lines.
type Block struct {
	Title            string
	HasTitle         bool
	OccurredAt       *time.Time
	OccurredAtQuality Quality
	Payload          []PayloadLine
}

// timestampStyleA/B, noiseLines, and knownTitles are literal byte
// patterns taken from captured transcripts, not re-transliterated: the
// source game's export mangles several glyphs (em-dash, bullet, emoji)
// through what looks like a Windows-1252-via-UTF-8 round trip, and the
// mangled form is what actually appears on the wire.
var (
	timestampStyleA = regexp.MustCompile(`^â€”\s*(.+)$`)
	timestampStyleB = regexp.MustCompile(`^Made by Synkedâ€¢(.+)$`)
	timeOnlyPattern = regexp.MustCompile(`^\d{1,2}:\d{2}(\s*[APap][Mm])?$`)
	mentionPattern  = regexp.MustCompile(`<@!?\d+>`)
)

var noiseLines = map[string]struct{}{
	"Made by Synked with â¤ï¸ & â˜•": {},
}

// knownTitles are the event-block titles this transcript format is known
// to emit. A line not in this set can still be recognized as a title via
// looksLikeTitle's glyph/parenthetical heuristics.
var knownTitles = map[string]struct{}{
	"Retragere Banca":             {},
	"Depunere Banca":              {},
	"Transfer (Bancar)":           {},
	"Ofera Bani":                  {},
	"Ofera Item":                  {},
	"ğŸ’µ Telefon":                   {},
	"âš ï¸ Obiect aruncat pe jos": {},
	"Transfera Item":              {},
	"Server Connect":              {},
	"Server Disconnect":           {},
	"Give Money (K-Menu)":         {},
	"Give Item (K-Menu)":          {},
	"ğŸ’ Bijuterii":                 {},
}

// RawLine is one line as read from a raw block, tagged with the evidence
// pointer it will be persisted under.
type RawLine struct {
	Text string
	Ref  rawblock.Ref
}

// state accumulates the in-progress block while scanning lines.
type state struct {
	occurredAt        *time.Time
	occurredAtQuality Quality
	title             string
	hasTitle          bool
	payload           []PayloadLine
}

func newState() state {
	return state{occurredAtQuality: QualityUnknown}
}

func (s state) isEmpty() bool {
	return !s.hasTitle && len(s.payload) == 0
}

func (s state) toBlock() Block {
	return Block{
		Title:             s.title,
		HasTitle:          s.hasTitle,
		OccurredAt:        s.occurredAt,
		OccurredAtQuality: s.occurredAtQuality,
		Payload:           s.payload,
	}
}

// Stream incrementally classifies RawLines into Blocks. Callers push lines
// with Push and must call Flush once after the last line to emit any
// trailing block.
type Stream struct {
	resolver     *TimestampResolver
	cur          state
	lastAbsolute *time.Time
}

// NewStream creates a Stream using resolver to resolve timestamp text.
func NewStream(resolver *TimestampResolver) *Stream {
	return &Stream{resolver: resolver, cur: newState()}
}

// Push classifies one raw line, returning a completed Block if pushing
// this line caused the previous block to close (i.e. this line opened a
// new timestamp header).
func (s *Stream) Push(line RawLine) (Block, bool) {
	text := strings.TrimSpace(line.Text)
	if text == "" {
		return Block{}, false
	}
	if _, ok := noiseLines[text]; ok {
		return Block{}, false
	}

	if m := timestampStyleA.FindStringSubmatch(text); m != nil {
		return s.openTimestamp(m[1])
	}
	if m := timestampStyleB.FindStringSubmatch(text); m != nil {
		return s.openTimestamp(m[1])
	}

	if !s.cur.hasTitle && (isKnownTitle(text) || looksLikeTitle(text)) {
		s.cur.title = text
		s.cur.hasTitle = true
		return Block{}, false
	}

	cleaned := cleanPayloadLine(text)
	s.cur.payload = append(s.cur.payload, PayloadLine{Text: cleaned, Ref: line.Ref})
	return Block{}, false
}

func (s *Stream) openTimestamp(tsText string) (Block, bool) {
	var flushed Block
	var ok bool
	if !s.cur.isEmpty() {
		flushed = s.cur.toBlock()
		ok = true
	}
	s.cur = newState()

	occurredAt, quality := s.resolver.Resolve(strings.TrimSpace(tsText), s.lastAbsolute)
	if quality == QualityAbsolute {
		s.lastAbsolute = occurredAt
	}
	s.cur.occurredAt = occurredAt
	s.cur.occurredAtQuality = quality
	return flushed, ok
}

// Flush emits the trailing in-progress block, if it is non-empty.
func (s *Stream) Flush() (Block, bool) {
	if s.cur.isEmpty() {
		return Block{}, false
	}
	b := s.cur.toBlock()
	s.cur = newState()
	return b, true
}

func isKnownTitle(line string) bool {
	_, ok := knownTitles[line]
	return ok
}

// looksLikeTitle recognizes untitled lines that still read as an event
// header: an emoji/glyph prefix, or a short parenthetical line.
func looksLikeTitle(line string) bool {
	for _, prefix := range []string{"âš ï¸", "ğŸ’µ", "ğŸ’"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	if strings.Contains(line, "(") && strings.Contains(line, ")") && len([]rune(line)) < 40 {
		return true
	}
	return false
}

func cleanPayloadLine(line string) string {
	line = mentionPattern.ReplaceAllString(line, "")
	line = strings.ReplaceAll(line, "**", "")
	line = strings.ReplaceAll(line, "*", "")
	line = strings.ReplaceAll(line, "`", "")
	return strings.TrimSpace(line)
}
