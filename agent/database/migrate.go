package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateDatabase applies the embedded migrations on a dedicated connection.
func MigrateDatabase(dsn string) error {
	dbSQL, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres for migrations: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		dbSQL.Close()
		return fmt.Errorf("load migrations: %w", err)
	}
	drv, err := migratepg.WithInstance(dbSQL, &migratepg.Config{})
	if err != nil {
		dbSQL.Close()
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		dbSQL.Close()
		return fmt.Errorf("migration instance: %w", err)
	}
	// Closing m also closes dbSQL.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
