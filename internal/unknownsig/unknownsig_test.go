package unknownsig

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAggregator(t *testing.T) {
	Convey(`Add groups occurrences by normalized signature`, t, func() {
		a := NewAggregator()
		a.Add("Player123 did a thing")
		a.Add("Player456 did a thing")
		a.Add("Player789 did a thing")
		a.Add("Completely different line")

		So(a.counts, ShouldHaveLength, 2)
		So(a.counts["player<#> did a thing"], ShouldEqual, 3)
		So(a.counts["completely different line"], ShouldEqual, 1)
	})
}
