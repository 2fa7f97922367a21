package event

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDedupeKey(t *testing.T) {
	Convey(`DedupeKey`, t, func() {
		Convey(`is stable for identical inputs`, func() {
			a := DedupeKey("digest", 3, 7, "BANK_WITHDRAW")
			b := DedupeKey("digest", 3, 7, "BANK_WITHDRAW")
			So(a, ShouldEqual, b)
		})
		Convey(`differs when any input differs`, func() {
			base := DedupeKey("digest", 3, 7, "BANK_WITHDRAW")
			So(DedupeKey("other-digest", 3, 7, "BANK_WITHDRAW"), ShouldNotEqual, base)
			So(DedupeKey("digest", 4, 7, "BANK_WITHDRAW"), ShouldNotEqual, base)
			So(DedupeKey("digest", 3, 8, "BANK_WITHDRAW"), ShouldNotEqual, base)
			So(DedupeKey("digest", 3, 7, "BANK_DEPOSIT"), ShouldNotEqual, base)
		})
		Convey(`is stable across separate ingest job runs`, func() {
			// raw_block_id is a fresh random uuid per flush, so dedupe must
			// not depend on it for re-ingests of the same source file to
			// collapse onto the same key.
			first := DedupeKey("digest", 42, 7, "BANK_WITHDRAW")
			second := DedupeKey("digest", 42, 7, "BANK_WITHDRAW")
			So(first, ShouldEqual, second)
		})
	})
}
