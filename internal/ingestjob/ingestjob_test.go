package ingestjob

import (
	"database/sql"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/xpnow/bugpanel/internal/apierr"
)

func TestScanJob(t *testing.T) {
	Convey(`scanJob`, t, func() {
		Convey(`wraps sql.ErrNoRows as a not-found apierr`, func() {
			_, err := scanJob(errNoRowsScanner{})
			So(apierr.KindOf(err), ShouldEqual, apierr.KindNotFound)
		})
	})
}

type errNoRowsScanner struct{}

func (errNoRowsScanner) Scan(dest ...any) error {
	return sql.ErrNoRows
}
