// Package migrate applies the embedded drivers/audit schema using golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"driver-provisioning/backend/internal/db"
)

// ErrNoChange is returned by Apply when the schema is already at the target version.
var ErrNoChange = migrate.ErrNoChange

// Direction selects which way migrations run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection validates a direction flag value.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	}
	return "", fmt.Errorf("direction must be up or down, got %q", s)
}

// Result reports the schema version after a run.
type Result struct {
	Version uint
	Dirty   bool
}

// Run applies migrations in the given direction against dsn. Being already at
// the target version is not an error. The schema version after the run is returned.
func Run(dsn string, direction string) (Result, error) {
	if dsn == "" {
		return Result{}, errors.New("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	dir, err := ParseDirection(direction)
	if err != nil {
		return Result{}, err
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return Result{}, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return Result{}, fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if dir == Up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Result{}, fmt.Errorf("migrate %s: %w", dir, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("migrate version: %w", err)
	}
	return Result{Version: version, Dirty: dirty}, nil
}
