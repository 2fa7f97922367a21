package parsers

import (
	"regexp"
	"strings"

	"github.com/xpnow/bugpanel/internal/normalize"
)

var (
	adminGiveMoney = regexp.MustCompile(`(.+?)\[(\d+)\] i-a dat lui (.+?)\[(\d+)\] suma de ([\d.,]+)\$`)
	adminGiveItem  = regexp.MustCompile(`(.+?)\[(\d+)\] i-a dat lui (.+?)\[(\d+)\] item-ul (.+?)\(x([\d.,]+)\)`)
)

type adminParser struct{}

func (adminParser) ID() string      { return "admin" }
func (adminParser) Version() string { return "v1" }

func (adminParser) Match(block normalize.Block) bool {
	return matchesAnyTitle(block, "Give Money (K-Menu)", "Give Item (K-Menu)")
}

func (adminParser) Parse(block normalize.Block) []EventData {
	var events []EventData
	for _, pl := range block.Payload {
		line := pl.Text
		if m := adminGiveMoney.FindStringSubmatch(line); m != nil {
			events = append(events, EventData{
				EventType:   "ADMIN_GIVE_MONEY",
				SrcPlayerID: m[2],
				DstPlayerID: m[4],
				Money:       ptr(ParseIntValue(m[5])),
				Metadata:    staffRankMetadata(m[1]),
				Ref:         pl.Ref,
			})
			continue
		}
		if m := adminGiveItem.FindStringSubmatch(line); m != nil {
			events = append(events, EventData{
				EventType:   "ADMIN_GIVE_ITEM",
				SrcPlayerID: m[2],
				DstPlayerID: m[4],
				Item:        strings.TrimSpace(m[5]),
				Qty:         ptr(ParseIntValue(m[6])),
				Metadata:    staffRankMetadata(m[1]),
				Ref:         pl.Ref,
			})
		}
	}
	return events
}

func staffRankMetadata(staffName string) map[string]any {
	rank := extractRank(staffName)
	if rank == "" {
		return nil
	}
	return map[string]any{"staff_rank": rank}
}

func extractRank(name string) string {
	if strings.Contains(name, "Fondator") {
		return "Fondator"
	}
	if strings.Contains(name, "Admin") {
		return "Admin"
	}
	return ""
}
