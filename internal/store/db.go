// Package store persists unit definitions (id, kind, dependency sets) in
// sqlite, adapted from the teacher's internal/db + internal/unit/repository.
// This is deliberately separate from the engine's in-memory StateStore:
// spec §6 lists "Persisted state: None" for the lifecycle core, but the
// loader's *definitions* (what to Load at cold start) need somewhere to
// live between process restarts.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Register migrate's sqlite3 driver.
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"

	// Register sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect opens a sqlite database at path.
func Connect(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: pinging %s: %w", path, err)
	}
	return db, nil
}

// Migrate runs every pending schema migration against the database at
// path, up to the latest version.
func Migrate(path string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: loading migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, "sqlite3://"+path)
	if err != nil {
		return fmt.Errorf("store: building migration instance: %w", err)
	}
	m.Log = &migrationLogger{log: log}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: applying migrations: %w", err)
	}
	return nil
}

type migrationLogger struct {
	log *slog.Logger
}

func (l *migrationLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l *migrationLogger) Verbose() bool {
	return true
}
