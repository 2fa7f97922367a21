package parsers

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/xpnow/bugpanel/internal/normalize"
	"github.com/xpnow/bugpanel/internal/rawblock"
)

func block(title string, lines ...string) normalize.Block {
	b := normalize.Block{Title: title, HasTitle: title != ""}
	for i, l := range lines {
		b.Payload = append(b.Payload, normalize.PayloadLine{
			Text: l,
			Ref:  rawblock.Ref{BlockID: "blk", LineIndex: i, GlobalLineNo: int64(i + 1)},
		})
	}
	return b
}

func TestParseIntValue(t *testing.T) {
	Convey(`ParseIntValue`, t, func() {
		So(ParseIntValue("12.345,00$"), ShouldEqual, 1234500)
		So(ParseIntValue("500"), ShouldEqual, 500)
		So(ParseIntValue(""), ShouldEqual, 0)
		So(ParseIntValue("nothing here"), ShouldEqual, 0)
	})
}

func TestBankParser(t *testing.T) {
	Convey(`BankParser recognizes a withdrawal`, t, func() {
		b := block("Retragere Banca", "PlayerOne[123] a retras 500$")
		So(bankParser{}.Match(b), ShouldBeTrue)
		events := bankParser{}.Parse(b)
		So(events, ShouldHaveLength, 1)
		So(events[0].EventType, ShouldEqual, "BANK_WITHDRAW")
		So(events[0].SrcPlayerID, ShouldEqual, "123")
		So(*events[0].Money, ShouldEqual, 500)
	})

	Convey(`BankParser recognizes a transfer`, t, func() {
		b := block("Transfer (Bancar)", "PlayerOne[123] a transferat 1.000,00$ lui PlayerTwo[456].")
		events := bankParser{}.Parse(b)
		So(events, ShouldHaveLength, 1)
		So(events[0].EventType, ShouldEqual, "BANK_TRANSFER")
		So(events[0].SrcPlayerID, ShouldEqual, "123")
		So(events[0].DstPlayerID, ShouldEqual, "456")
		So(*events[0].Money, ShouldEqual, 100000)
	})
}

func TestOfferParser(t *testing.T) {
	Convey(`OfferParser treats "nil" item offers as unknown`, t, func() {
		b := block("Ofera Item", "Jucatorul A[1] i-a oferit lui B[2] - nil(x1).")
		events := offerParser{}.Parse(b)
		So(events, ShouldHaveLength, 1)
		So(events[0].Item, ShouldBeEmpty)
		So(events[0].Metadata["item_unknown"], ShouldEqual, true)
	})
}

func TestPhoneParser(t *testing.T) {
	Convey(`PhoneParser matches the mojibake title as captured from transcripts`, t, func() {
		b := block("ðŸ’µ Telefon")
		So(phoneParser{}.Match(b), ShouldBeTrue)
	})

	Convey(`PhoneParser pairs equal-amount debit and credit into a transfer`, t, func() {
		b := block("ðŸ’µ Telefon",
			"Jucatorului: A(1) i-au fost luati 100 $",
			"Jucatorului: B(2) i-au fost adaugati 100 $",
		)
		events := phoneParser{}.Parse(b)
		So(events, ShouldHaveLength, 1)
		So(events[0].EventType, ShouldEqual, "PHONE_TRANSFER")
		So(events[0].SrcPlayerID, ShouldEqual, "1")
		So(events[0].DstPlayerID, ShouldEqual, "2")
	})

	Convey(`PhoneParser leaves an unpaired debit as a delta`, t, func() {
		b := block("ðŸ’µ Telefon", "Jucatorului: A(1) i-au fost luati 50 $")
		events := phoneParser{}.Parse(b)
		So(events, ShouldHaveLength, 1)
		So(events[0].EventType, ShouldEqual, "PHONE_DELTA")
		So(events[0].Metadata["sign"], ShouldEqual, "debit")
	})
}

func TestDispatchUnmatchedBlock(t *testing.T) {
	Convey(`Dispatch returns no events for a block whose title matches nothing`, t, func() {
		b := block("Something Unrelated", "a line nobody parses")
		So(Dispatch(b), ShouldBeEmpty)
	})
}
