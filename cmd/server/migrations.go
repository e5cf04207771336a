package main

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/phrazzld/recall-api/internal/platform/sqlstore"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// runMigrations applies any pending schema migrations on startup. The
// migration SQL is written to the common subset of PostgreSQL and SQLite,
// so both backends share one set of files.
func runMigrations(db *sql.DB, dialect sqlstore.Dialect) error {
	gooseDialect := "postgres"
	if dialect == sqlstore.DialectSQLite {
		gooseDialect = "sqlite3"
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
