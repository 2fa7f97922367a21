package signature

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	Convey(`Normalize`, t, func() {
		Convey(`collapses digit runs and squashes whitespace`, func() {
			So(Normalize("Player123   did  99 things"), ShouldEqual, "player<#> did <#> things")
		})
		Convey(`is idempotent`, func() {
			once := Normalize("Player123   did  99 things")
			So(Normalize(once), ShouldEqual, once)
		})
		Convey(`lowercases mixed case`, func() {
			So(Normalize("UNKNOWN Event Line"), ShouldEqual, "unknown event line")
		})
	})
}
