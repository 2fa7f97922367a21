package normalize

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/xpnow/bugpanel/internal/rawblock"
)

func mustLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Bucharest")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestTimestampResolver(t *testing.T) {
	Convey(`With a resolver anchored on a known job date`, t, func() {
		loc := mustLoc(t)
		jobDate := time.Date(2023, time.October, 10, 12, 0, 0, 0, loc)
		r := NewTimestampResolver(jobDate, "DMY", loc)

		Convey(`An absolute month-first date resolves to ABSOLUTE`, func() {
			dt, q := r.Resolve("October 5, 2023 3:04 PM", nil)
			So(q, ShouldEqual, QualityAbsolute)
			So(dt.Month(), ShouldEqual, time.October)
			So(dt.Day(), ShouldEqual, 5)
			So(dt.Hour(), ShouldEqual, 15)
		})

		Convey(`A DMY-ambiguous numeric date treats the first field as the day`, func() {
			dt, q := r.Resolve("5/10/2023 15:04", nil)
			So(q, ShouldEqual, QualityAbsolute)
			So(dt.Day(), ShouldEqual, 5)
			So(dt.Month(), ShouldEqual, time.October)
		})

		Convey(`A bare time resolves to TIME_ONLY against the anchor's date`, func() {
			dt, q := r.Resolve("3:04 PM", nil)
			So(q, ShouldEqual, QualityTimeOnly)
			So(dt.Day(), ShouldEqual, jobDate.Day())
			So(dt.Hour(), ShouldEqual, 15)
		})

		Convey(`"Yesterday at" resolves to RELATIVE one day before the anchor`, func() {
			dt, q := r.Resolve("Yesterday at 9:00 AM", nil)
			So(q, ShouldEqual, QualityRelative)
			So(dt.Day(), ShouldEqual, jobDate.Day()-1)
			So(dt.Hour(), ShouldEqual, 9)
		})

		Convey(`Garbage text resolves to UNKNOWN`, func() {
			_, q := r.Resolve("not a timestamp at all!!", nil)
			So(q, ShouldEqual, QualityUnknown)
		})

		Convey(`A later TIME_ONLY header anchors off the last absolute timestamp`, func() {
			last := time.Date(2023, time.October, 5, 0, 0, 0, 0, loc)
			dt, q := r.Resolve("3:04 PM", &last)
			So(q, ShouldEqual, QualityTimeOnly)
			So(dt.Day(), ShouldEqual, 5)
			So(dt.Month(), ShouldEqual, time.October)
		})
	})
}

func TestStream(t *testing.T) {
	Convey(`With a Stream`, t, func() {
		loc := mustLoc(t)
		jobDate := time.Date(2023, time.October, 10, 12, 0, 0, 0, loc)
		resolver := NewTimestampResolver(jobDate, "DMY", loc)
		s := NewStream(resolver)

		push := func(text string) (Block, bool) {
			return s.Push(RawLine{Text: text, Ref: rawblock.Ref{BlockID: "b1", LineIndex: 0}})
		}

		Convey(`A timestamp header followed by a title and payload forms one block on flush`, func() {
			_, flushed := push("â€” October 5, 2023 3:04 PM")
			So(flushed, ShouldBeFalse)
			_, flushed = push("Retragere Banca")
			So(flushed, ShouldBeFalse)
			_, flushed = push("PlayerOne[123] a retras 500$")
			So(flushed, ShouldBeFalse)

			block, ok := s.Flush()
			So(ok, ShouldBeTrue)
			So(block.HasTitle, ShouldBeTrue)
			So(block.Title, ShouldEqual, "Retragere Banca")
			So(block.OccurredAtQuality, ShouldEqual, QualityAbsolute)
			So(len(block.Payload), ShouldEqual, 1)
		})

		Convey(`A second timestamp header flushes the previous block`, func() {
			push("â€” October 5, 2023 3:04 PM")
			push("Retragere Banca")
			push("PlayerOne[123] a retras 500$")

			block, flushed := push("â€” October 5, 2023 4:00 PM")
			So(flushed, ShouldBeTrue)
			So(block.Title, ShouldEqual, "Retragere Banca")
		})

		Convey(`Noise lines are dropped entirely`, func() {
			_, flushed := push("Made by Synked with â¤ï¸ & â˜•")
			So(flushed, ShouldBeFalse)
			_, ok := s.Flush()
			So(ok, ShouldBeFalse)
		})

		Convey(`Mention markup and markdown are stripped from payload lines`, func() {
			push("Transfera Item")
			push("**<@!123>** a pus in `portbagaj` item-ul *Apa*(x5).")
			block, ok := s.Flush()
			So(ok, ShouldBeTrue)
			So(block.Payload[0].Text, ShouldEqual, "a pus in portbagaj item-ul Apa(x5).")
		})
	})
}
