// Package migrations applies the versioned Postgres schema under
// ./migrations with golang-migrate.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"ms-attendance/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Runner wraps a golang-migrate instance bound to one database.
type Runner struct {
	db       *sql.DB
	dir      string
	logger   *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(db *sql.DB, dir string, l *logger.Logger) *Runner {
	if dir == "" {
		dir = "./migrations"
	}
	return &Runner{db: db, dir: dir, logger: l}
}

func (r *Runner) init() error {
	if r.migrator != nil {
		return nil
	}
	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", r.dir)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance("file://"+r.dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	r.migrator = migrator
	return nil
}

// Up applies every pending migration. A schema left dirty by a failed run is
// reported rather than forced.
func (r *Runner) Up() error {
	if err := r.init(); err != nil {
		return err
	}
	if version, dirty, err := r.migrator.Version(); err == nil && dirty {
		return fmt.Errorf("schema version %d is dirty, fix it and force the version before migrating", version)
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, _, err := r.Version()
	if err != nil {
		return err
	}
	r.logger.LogDatabase("MIGRATE", "schema_migrations", fmt.Sprintf("schema at version %d", version))
	return nil
}

// Down rolls back the given number of migrations.
func (r *Runner) Down(steps int) error {
	if err := r.init(); err != nil {
		return err
	}
	if steps <= 0 {
		return errors.New("steps must be positive")
	}
	if err := r.migrator.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Force records version as clean without running anything.
func (r *Runner) Force(version int) error {
	if err := r.init(); err != nil {
		return err
	}
	return r.migrator.Force(version)
}

// Version returns the applied version; 0 means nothing has been applied.
func (r *Runner) Version() (uint, bool, error) {
	if err := r.init(); err != nil {
		return 0, false, err
	}
	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("error closing migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("error closing migrator database: %w", databaseErr)
	}
	return nil
}
