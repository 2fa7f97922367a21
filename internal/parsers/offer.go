package parsers

import (
	"regexp"
	"strings"

	"github.com/xpnow/bugpanel/internal/normalize"
)

var (
	offerMoney = regexp.MustCompile(`Jucatorul (.+?)\[(\d+)\] i-a oferit lui (.+?)\[(\d+)\] suma de ([\d.,]+)\$\.`)
	offerItem  = regexp.MustCompile(`Jucatorul (.+?)\[(\d+)\] i-a oferit lui (.+?)\[(\d+)\] - (.+?)\(x([\d.,]+)\)\.`)
)

type offerParser struct{}

func (offerParser) ID() string      { return "offer" }
func (offerParser) Version() string { return "v1" }

func (offerParser) Match(block normalize.Block) bool {
	return matchesAnyTitle(block, "Ofera Bani", "Ofera Item")
}

func (offerParser) Parse(block normalize.Block) []EventData {
	var events []EventData
	for _, pl := range block.Payload {
		line := pl.Text
		if m := offerMoney.FindStringSubmatch(line); m != nil {
			events = append(events, EventData{
				EventType:   "OFFER_MONEY",
				SrcPlayerID: m[2],
				DstPlayerID: m[4],
				Money:       ptr(ParseIntValue(m[5])),
				Ref:         pl.Ref,
			})
			continue
		}
		if m := offerItem.FindStringSubmatch(line); m != nil {
			item := strings.TrimSpace(m[5])
			var metadata map[string]any
			if strings.EqualFold(item, "nil") {
				metadata = map[string]any{"item_unknown": true}
				item = ""
			}
			events = append(events, EventData{
				EventType:   "OFFER_ITEM",
				SrcPlayerID: m[2],
				DstPlayerID: m[4],
				Item:        item,
				Qty:         ptr(ParseIntValue(m[6])),
				Metadata:    metadata,
				Ref:         pl.Ref,
			})
		}
	}
	return events
}
