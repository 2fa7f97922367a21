package parsers

import (
	"regexp"
	"strings"

	"github.com/xpnow/bugpanel/internal/normalize"
)

var dropItemPattern = regexp.MustCompile(`Juc(?:ător|ator): (.+?) \((\d+)\) a aruncat pe jos ([\d.,]+)x (.+)`)

type dropItemParser struct{}

func (dropItemParser) ID() string      { return "drop-item" }
func (dropItemParser) Version() string { return "v1" }

func (dropItemParser) Match(block normalize.Block) bool {
	return matchesAnyTitle(block, "⚠️ Obiect aruncat pe jos")
}

func (dropItemParser) Parse(block normalize.Block) []EventData {
	var events []EventData
	for _, pl := range block.Payload {
		m := dropItemPattern.FindStringSubmatch(pl.Text)
		if m == nil {
			continue
		}
		events = append(events, EventData{
			EventType:   "ITEM_DROP",
			SrcPlayerID: m[2],
			Container:   "ground",
			Item:        strings.TrimSpace(m[4]),
			Qty:         ptr(ParseIntValue(m[3])),
			Ref:         pl.Ref,
		})
	}
	return events
}
