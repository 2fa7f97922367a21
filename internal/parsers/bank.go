package parsers

import (
	"regexp"

	"github.com/xpnow/bugpanel/internal/normalize"
)

var (
	bankWithdraw = regexp.MustCompile(`(.+?)\[(\d+)\] a retras ([\d.,]+)\$`)
	bankDeposit  = regexp.MustCompile(`(.+?)\[(\d+)\] a depozitat ([\d.,]+)\$`)
	bankTransfer = regexp.MustCompile(`(.+?)\[(\d+)\] a transferat ([\d.,]+)\$ lui (.+?)\[(\d+)\]\.?`)
)

type bankParser struct{}

func (bankParser) ID() string      { return "bank" }
func (bankParser) Version() string { return "v1" }

func (bankParser) Match(block normalize.Block) bool {
	return matchesAnyTitle(block, "Retragere Banca", "Depunere Banca", "Transfer (Bancar)")
}

func (bankParser) Parse(block normalize.Block) []EventData {
	var events []EventData
	for _, pl := range block.Payload {
		line := pl.Text
		switch {
		case bankWithdraw.MatchString(line):
			m := bankWithdraw.FindStringSubmatch(line)
			events = append(events, EventData{
				EventType:   "BANK_WITHDRAW",
				SrcPlayerID: m[2],
				Money:       ptr(ParseIntValue(m[3])),
				Ref:         pl.Ref,
			})
		case bankDeposit.MatchString(line):
			m := bankDeposit.FindStringSubmatch(line)
			events = append(events, EventData{
				EventType:   "BANK_DEPOSIT",
				SrcPlayerID: m[2],
				Money:       ptr(ParseIntValue(m[3])),
				Ref:         pl.Ref,
			})
		case bankTransfer.MatchString(line):
			m := bankTransfer.FindStringSubmatch(line)
			events = append(events, EventData{
				EventType:   "BANK_TRANSFER",
				SrcPlayerID: m[2],
				DstPlayerID: m[5],
				Money:       ptr(ParseIntValue(m[3])),
				Ref:         pl.Ref,
			})
		}
	}
	return events
}
