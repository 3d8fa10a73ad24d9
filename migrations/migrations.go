// Package migrations embeds identityguard's SQL schema and applies it with
// golang-migrate, mirroring the teacher's database/migrations package (its
// ApplyMigrations(db) entry point, exercised there against sqlite and here
// against Postgres).
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var files embed.FS

// ApplyMigrations runs every pending up migration against db. It is a no-op
// returning nil when the schema is already current.
func ApplyMigrations(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrations: nil database connection")
	}

	source, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("migrations: opening embedded source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrations: wrapping postgres connection: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrations: constructing migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: applying: %w", err)
	}
	return nil
}

// RevertLast rolls back the single most recently applied migration. Used by
// the CLI's migrate --down flag for manual recovery; not exercised by serve.
func RevertLast(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrations: nil database connection")
	}

	source, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("migrations: opening embedded source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrations: wrapping postgres connection: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrations: constructing migrator: %w", err)
	}

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: reverting: %w", err)
	}
	return nil
}
