package reportpack

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFormatOccurredAt(t *testing.T) {
	Convey(`formatOccurredAt`, t, func() {
		Convey(`returns empty string for a nil timestamp`, func() {
			So(formatOccurredAt(nil), ShouldEqual, "")
		})
	})
}

func TestDerefHelpers(t *testing.T) {
	Convey(`deref and derefInt`, t, func() {
		Convey(`return empty string for nil pointers`, func() {
			So(deref(nil), ShouldEqual, "")
			So(derefInt(nil), ShouldEqual, "")
		})
		Convey(`return the pointed-to value otherwise`, func() {
			s := "alpha42"
			n := int64(7)
			So(deref(&s), ShouldEqual, "alpha42")
			So(derefInt(&n), ShouldEqual, "7")
		})
	})
}
