package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationResult reports the schema version before and after a run.
type MigrationResult struct {
	From uint
	To   uint
}

// Changed reports whether the run applied anything.
func (r MigrationResult) Changed() bool {
	return r.From != r.To
}

func migrationSource() (source.Driver, error) {
	return iofs.New(migrationFiles, "migrations")
}

// Migrate brings the schema up to the newest embedded version. Cancelling ctx
// stops the run once the migration in flight has finished.
func Migrate(ctx context.Context, db *sqlx.DB) (MigrationResult, error) {
	var result MigrationResult

	src, err := migrationSource()
	if err != nil {
		return result, fmt.Errorf("open migration source: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = src.Close()
		return result, fmt.Errorf("acquire migration connection: %w", err)
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		_ = conn.Close()
		_ = src.Close()
		return result, fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		_ = src.Close()
		return result, fmt.Errorf("init migrator: %w", err)
	}
	defer m.Close()

	if result.From, err = schemaVersion(m); err != nil {
		return result, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return result, fmt.Errorf("apply migrations: %w", err)
	}

	if result.To, err = schemaVersion(m); err != nil {
		return result, err
	}
	return result, nil
}

func schemaVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
