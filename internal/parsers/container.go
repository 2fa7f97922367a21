package parsers

import (
	"regexp"
	"strings"

	"github.com/xpnow/bugpanel/internal/normalize"
)

var (
	containerPut    = regexp.MustCompile(`\[TRANSFER\].*?\[(\d+)\] a pus in (.+?) item-ul (.+?)\(x([\d.,]+)\)\.`)
	containerTake   = regexp.MustCompile(`\[REMOVE\].*?\[(\d+)\] a scos din (.+?) item-ul (.+?)\(x([\d.,]+)\)\.`)
	containerSearch = regexp.MustCompile(`\[PERCHEZITIE\] Jucatorul (.+?)\[(\d+)\] a scos din (.+?) item-ul (.+?)\(x([\d.,]+)\)\.`)
)

type containerParser struct{}

func (containerParser) ID() string      { return "container" }
func (containerParser) Version() string { return "v1" }

func (containerParser) Match(block normalize.Block) bool {
	return matchesAnyTitle(block, "Transfera Item")
}

func (containerParser) Parse(block normalize.Block) []EventData {
	var events []EventData
	for _, pl := range block.Payload {
		line := pl.Text
		switch {
		case containerPut.MatchString(line):
			m := containerPut.FindStringSubmatch(line)
			events = append(events, EventData{
				EventType:   "CONTAINER_PUT",
				SrcPlayerID: m[1],
				Container:   strings.TrimSpace(m[2]),
				Item:        strings.TrimSpace(m[3]),
				Qty:         ptr(ParseIntValue(m[4])),
				Ref:         pl.Ref,
			})
		case containerTake.MatchString(line):
			m := containerTake.FindStringSubmatch(line)
			events = append(events, EventData{
				EventType:   "CONTAINER_TAKE",
				SrcPlayerID: m[1],
				Container:   strings.TrimSpace(m[2]),
				Item:        strings.TrimSpace(m[3]),
				Qty:         ptr(ParseIntValue(m[4])),
				Ref:         pl.Ref,
			})
		case containerSearch.MatchString(line):
			m := containerSearch.FindStringSubmatch(line)
			events = append(events, EventData{
				EventType:   "SEARCH_TAKE",
				SrcPlayerID: m[2],
				DstPlayerID: strings.TrimSpace(m[3]),
				Item:        strings.TrimSpace(m[4]),
				Qty:         ptr(ParseIntValue(m[5])),
				Ref:         pl.Ref,
			})
		}
	}
	return events
}
