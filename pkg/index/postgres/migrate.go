package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for golang-migrate

	"github.com/fcrepo/ocfl-persistence/pkg/index/postgres/migrations"
)

// runMigrations applies the embedded FOI schema migrations, using
// golang-migrate's own advisory locking so concurrent index nodes don't
// race applying the same migration set. Grounded on the teacher's
// pkg/store/metadata/postgres/migrate.go.
func runMigrations(ctx context.Context, connString string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{
		MigrationsTable: "foi_schema_migrations",
		DatabaseName:    "foi",
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	logger.Info("applying FOI schema migrations")
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if err == nil {
		logger.Info("FOI schema migration state", "version", version, "dirty", dirty)
		if dirty {
			logger.Warn("FOI schema is in a dirty migration state; manual intervention required")
		}
	}

	return nil
}
