package parsers

import (
	"regexp"
	"strings"

	"github.com/xpnow/bugpanel/internal/normalize"
)

var jewelryBuy = regexp.MustCompile(`Juc(?:ător|ator): (.+?)\((\d+)\) a cumparat (.+?) pentru suma de ([\d.,]+)\$`)

type jewelryParser struct{}

func (jewelryParser) ID() string      { return "jewelry" }
func (jewelryParser) Version() string { return "v1" }

func (jewelryParser) Match(block normalize.Block) bool {
	return matchesAnyTitle(block, "💎 Bijuterii")
}

func (jewelryParser) Parse(block normalize.Block) []EventData {
	var events []EventData
	for _, pl := range block.Payload {
		m := jewelryBuy.FindStringSubmatch(pl.Text)
		if m == nil {
			continue
		}
		events = append(events, EventData{
			EventType:   "JEWELRY_BUY",
			SrcPlayerID: m[2],
			Item:        strings.TrimSpace(m[3]),
			Money:       ptr(ParseIntValue(m[4])),
			Ref:         pl.Ref,
		})
	}
	return events
}
