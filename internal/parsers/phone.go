package parsers

import (
	"regexp"

	"github.com/xpnow/bugpanel/internal/normalize"
	"github.com/xpnow/bugpanel/internal/rawblock"
)

// The "Äƒtorului" variant is mojibake (Windows-1250-via-UTF-8 garbling of
// "ătorului") as it actually appears in captured transcripts; kept as a
// literal byte pattern rather than re-transliterated, matching the
// source game's export encoding.
var phoneDelta = regexp.MustCompile(`Juc(?:Äƒtorului|atorului): (.+?)\((\d+)\) i-au fost (luati|adaugati) ([\d.,]+) \$`)

type phoneParser struct{}

func (phoneParser) ID() string      { return "phone" }
func (phoneParser) Version() string { return "v1" }

func (phoneParser) Match(block normalize.Block) bool {
	return matchesAnyTitle(block, "ðŸ’µ Telefon")
}

type phoneLeg struct {
	playerID string
	amount   int64
	ref      rawblock.Ref
}

// Parse pairs each debit ("luati") with the first as-yet-unused credit
// ("adaugati") of the same amount, in encounter order, emitting a
// PHONE_TRANSFER for each pair and a PHONE_DELTA for any leg left
// unpaired.
func (phoneParser) Parse(block normalize.Block) []EventData {
	var debits, credits []phoneLeg
	for _, pl := range block.Payload {
		m := phoneDelta.FindStringSubmatch(pl.Text)
		if m == nil {
			continue
		}
		leg := phoneLeg{playerID: m[2], amount: ParseIntValue(m[4]), ref: pl.Ref}
		if m[3] == "luati" {
			debits = append(debits, leg)
		} else {
			credits = append(credits, leg)
		}
	}

	var events []EventData
	usedCredit := make(map[int]bool)
	for _, debit := range debits {
		pairedIdx := -1
		for idx, credit := range credits {
			if usedCredit[idx] {
				continue
			}
			if credit.amount == debit.amount {
				pairedIdx = idx
				break
			}
		}
		if pairedIdx >= 0 {
			credit := credits[pairedIdx]
			usedCredit[pairedIdx] = true
			events = append(events, EventData{
				EventType:   "PHONE_TRANSFER",
				SrcPlayerID: debit.playerID,
				DstPlayerID: credit.playerID,
				Money:       ptr(debit.amount),
				Ref:         debit.ref,
			})
		} else {
			events = append(events, EventData{
				EventType:   "PHONE_DELTA",
				SrcPlayerID: debit.playerID,
				Money:       ptr(debit.amount),
				Metadata:    map[string]any{"sign": "debit"},
				Ref:         debit.ref,
			})
		}
	}
	for idx, credit := range credits {
		if usedCredit[idx] {
			continue
		}
		events = append(events, EventData{
			EventType:   "PHONE_DELTA",
			SrcPlayerID: credit.playerID,
			Money:       ptr(credit.amount),
			Metadata:    map[string]any{"sign": "credit"},
			Ref:         credit.ref,
		})
	}
	return events
}
