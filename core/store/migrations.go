package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"authgate/core/utils"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ApplyMigrations brings the schema up to date via goose. The dialect is
// detected from the live connection so the same embedded migrations serve
// postgres in production and sqlite in tests.
func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	isPG, err := isPostgresDB(ctx, db)
	if err != nil {
		return err
	}
	dialect := "sqlite3"
	if isPG {
		dialect = "postgres"
	} else if !isTestRuntime() {
		return fmt.Errorf("only postgres is supported outside go test runtime")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	if logger != nil {
		logger.Printf("applying goose migrations (%s)", dialect)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return err
	}
	if logger != nil {
		logger.Printf("goose migrations applied")
	}
	return nil
}

func isPostgresDB(ctx context.Context, db *sql.DB) (bool, error) {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return false, err
	}
	var version string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return false, nil
	}
	return true, nil
}
