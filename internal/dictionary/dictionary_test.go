package dictionary

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCache(t *testing.T) {
	Convey(`With a mocked database`, t, func() {
		db, mock, err := sqlmock.New()
		So(err, ShouldBeNil)
		defer db.Close()
		c := New(db)
		ctx := context.Background()

		Convey(`EventTypeID reuses an existing row`, func() {
			mock.ExpectQuery(`SELECT id FROM dict_event_type WHERE key = \$1`).
				WithArgs("BANK_WITHDRAW").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

			id, err := c.EventTypeID(ctx, "BANK_WITHDRAW")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, 7)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey(`EventTypeID creates a new row on first sight and memoizes it`, func() {
			mock.ExpectQuery(`SELECT id FROM dict_event_type WHERE key = \$1`).
				WithArgs("JEWELRY_BUY").
				WillReturnError(sql.ErrNoRows)
			mock.ExpectQuery(`INSERT INTO dict_event_type`).
				WithArgs("JEWELRY_BUY").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

			id, err := c.EventTypeID(ctx, "JEWELRY_BUY")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, 9)

			// Second call is served entirely from the in-memory cache: no
			// further expectations were queued, so a query here would fail.
			id, err = c.EventTypeID(ctx, "JEWELRY_BUY")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, 9)
		})

		Convey(`ContainerID derives the owner from a portbagaj_ key`, func() {
			mock.ExpectQuery(`SELECT id FROM dict_container WHERE key = \$1`).
				WithArgs("portbagaj_42").
				WillReturnError(sql.ErrNoRows)
			mock.ExpectQuery(`INSERT INTO dict_container`).
				WithArgs("portbagaj_42", "42").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

			id, err := c.ContainerID(ctx, "portbagaj_42")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, 3)
		})

		Convey(`ContainerID takes only the second underscore field as owner`, func() {
			mock.ExpectQuery(`SELECT id FROM dict_container WHERE key = \$1`).
				WithArgs("portbagaj_42_interior").
				WillReturnError(sql.ErrNoRows)
			mock.ExpectQuery(`INSERT INTO dict_container`).
				WithArgs("portbagaj_42_interior", "42").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

			id, err := c.ContainerID(ctx, "portbagaj_42_interior")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, 4)
		})
	})
}

func TestContainerOwner(t *testing.T) {
	Convey(`containerOwner`, t, func() {
		Convey(`extracts the id from a bare portbagaj_<id> key`, func() {
			owner := containerOwner("portbagaj_42")
			So(owner, ShouldNotBeNil)
			So(*owner, ShouldEqual, "42")
		})
		Convey(`extracts only the second field from a multi-part key`, func() {
			owner := containerOwner("portbagaj_42_interior")
			So(owner, ShouldNotBeNil)
			So(*owner, ShouldEqual, "42")
		})
		Convey(`returns nil for a key without the prefix`, func() {
			So(containerOwner("depozit_central"), ShouldBeNil)
		})
	})
}
