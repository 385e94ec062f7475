package migration

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"
)

//go:embed sql
var files embed.FS

// Apply runs the embedded migrations for dialect against db.
func Apply(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) error {
	manager := NewManager(files, "sql/"+dialect.Name(), NewSQLExecutor(db, dialect), logger)
	return manager.Run(ctx)
}
