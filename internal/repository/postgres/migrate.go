package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"carrental-backend/internal/logger"
)

//go:embed schema.sql
var schema string

// Migrate creates any missing tables and indexes. It is safe to run on
// every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.DatabaseCall("Migrate", "schema.sql")
	if _, err := db.ExecContext(ctx, schema); err != nil {
		logger.DatabaseResult("Migrate", 0, err)
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.DatabaseResult("Migrate", 0, nil)
	return nil
}
