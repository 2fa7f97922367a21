// Package dbutil wires the shared *sql.DB pool (over pgx's database/sql
// adapter) and runs schema migrations. Both cmd/api and cmd/worker open
// their pool through Open.
package dbutil

import (
	"database/sql"
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"go.chromium.org/luci/common/errors"
)

// Open opens a connection pool against databaseURL using pgx's
// database/sql driver ("pgx"), with conservative pool limits suitable for
// a single API process or worker.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, errors.Annotate(err, "open database").Err()
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

//go:embed all:migrations
var migrationFS embed.FS

// Migrate applies all pending schema migrations embedded under
// migrations/. It is idempotent: running it against an up-to-date
// database is a no-op.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return errors.Annotate(err, "load embedded migrations").Err()
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return errors.Annotate(err, "init migration driver").Err()
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return errors.Annotate(err, "init migrator").Err()
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Annotate(err, "apply migrations").Err()
	}
	return nil
}
