// Package migrations embeds and applies the schema of the group, event,
// nodestore and attachment tables.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var migrationFiles embed.FS

// Status is the schema version recorded in schema_migrations.
type Status struct {
	Version uint
	Dirty   bool
	Empty   bool // no migration applied yet
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFiles, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func currentStatus(m *migrate.Migrate) (Status, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{Empty: true}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return Status{Version: version, Dirty: dirty}, nil
}

// CurrentStatus reports the applied schema version without changing anything.
func CurrentStatus(db *sql.DB) (Status, error) {
	m, err := newMigrate(db)
	if err != nil {
		return Status{}, err
	}
	return currentStatus(m)
}

// Run applies pending migrations. With apply=false it only logs the current
// version. A dirty version is forced back one step first; every migration is
// written with IF NOT EXISTS so re-applying the interrupted one is safe.
func Run(db *sql.DB, apply bool) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	status, err := currentStatus(m)
	if err != nil {
		return err
	}

	if status.Dirty {
		previous := int(status.Version) - 1
		if previous <= 0 {
			previous = -1
		}
		slog.Warn("[Migrations] Dirty schema version, forcing back", "version", status.Version, "forced_to", previous)
		if err := m.Force(previous); err != nil {
			return fmt.Errorf("failed to recover dirty migration state at version %d: %w", status.Version, err)
		}
	}

	if !apply {
		slog.Info("[Migrations] Auto-migration disabled", "version", status.Version, "empty", status.Empty)
		return nil
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("[Migrations] Schema is up to date", "version", status.Version)
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	after, err := currentStatus(m)
	if err != nil {
		return err
	}
	slog.Info("[Migrations] Applied", "from_version", status.Version, "to_version", after.Version)
	return nil
}
