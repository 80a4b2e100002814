package cookiestore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/satanpticoeur/social-logement-app/core/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func applyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("cookie store migrations: %w", err)
	}
	logger.Debugf("cookie store migrations applied")
	return nil
}

// SchemaVersion reports the applied migration version; 0 for memory stores.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, s.db)
}
