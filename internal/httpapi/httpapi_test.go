package httpapi

import (
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseIntQueryDefault(t *testing.T) {
	Convey(`parseIntQueryDefault`, t, func() {
		Convey(`falls back to the default when unset`, func() {
			r := httptest.NewRequest("GET", "/evidence/raw-line?raw_block_id=x&line_index=1", nil)
			n, err := parseIntQueryDefault(r, "context", 2, 10)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
		})
		Convey(`rejects a value over the max`, func() {
			r := httptest.NewRequest("GET", "/evidence/raw-line?context=99", nil)
			_, err := parseIntQueryDefault(r, "context", 2, 10)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParseIntQuery(t *testing.T) {
	Convey(`parseIntQuery`, t, func() {
		Convey(`rejects a missing parameter`, func() {
			r := httptest.NewRequest("GET", "/uploads/abc/chunk", nil)
			_, err := parseIntQuery(r, "index")
			So(err, ShouldNotBeNil)
		})
		Convey(`parses a present integer parameter`, func() {
			r := httptest.NewRequest("GET", "/uploads/abc/chunk?index=3", nil)
			n, err := parseIntQuery(r, "index")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
		})
	})
}

func TestServerOriginAllowed(t *testing.T) {
	Convey(`Server.originAllowed`, t, func() {
		s := &Server{allowOrigins: []string{"https://a.example"}}
		Convey(`matches an exact allow-listed origin`, func() {
			So(s.originAllowed("https://a.example"), ShouldEqual, "https://a.example")
		})
		Convey(`rejects an origin not in the list`, func() {
			So(s.originAllowed("https://evil.example"), ShouldEqual, "")
		})

		wildcard := &Server{allowOrigins: []string{"*"}}
		Convey(`a wildcard allows any origin`, func() {
			So(wildcard.originAllowed("https://anything.example"), ShouldEqual, "*")
		})
	})
}
