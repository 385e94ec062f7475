package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Dialect captures the placeholder syntax of a SQL backend.
type Dialect int

const (
	// DialectSQLite uses ? placeholders.
	DialectSQLite Dialect = iota
	// DialectPostgres uses $n placeholders.
	DialectPostgres
)

// Name reports the directory holding the dialect's migration files.
func (d Dialect) Name() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

const versionTableDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL,
	checksum TEXT NOT NULL DEFAULT '',
	execution_time_ms INTEGER NOT NULL DEFAULT 0
)`

// SQLExecutor applies migrations through database/sql.
type SQLExecutor struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLExecutor creates an executor for db.
func NewSQLExecutor(db *sql.DB, dialect Dialect) *SQLExecutor {
	return &SQLExecutor{db: db, dialect: dialect, now: time.Now}
}

// InitializeVersionTable creates schema_migrations when missing.
func (e *SQLExecutor) InitializeVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, versionTableDDL); err != nil {
		return NewMigrationError("", "", "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of migration inside one transaction.
func (e *SQLExecutor) ExecuteMigration(ctx context.Context, migration Migration) (err error) {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return NewMigrationError(migration.Version, migration.FilePath, "parse SQL",
			fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewMigrationError(migration.Version, migration.FilePath, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	for i, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return NewMigrationError(migration.Version, migration.FilePath, "commit transaction", err)
	}
	return nil
}

// RecordMigration inserts a schema_migrations row for migration.
func (e *SQLExecutor) RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error {
	query := fmt.Sprintf(
		"INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (%s, %s, %s, %s)",
		e.dialect.placeholder(1), e.dialect.placeholder(2), e.dialect.placeholder(3), e.dialect.placeholder(4),
	)
	appliedAt := e.now().UTC().Format(time.RFC3339)
	if _, err := e.db.ExecContext(ctx, query, migration.Version, appliedAt, migration.Checksum, executionTime.Milliseconds()); err != nil {
		return NewMigrationError(migration.Version, migration.FilePath, "record migration", err)
	}
	return nil
}

// AppliedMigrations lists schema_migrations ordered by version.
func (e *SQLExecutor) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations ORDER BY version ASC")
	if err != nil {
		return nil, NewMigrationError("", "", "query applied migrations", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			record    AppliedMigration
			appliedAt string
			millis    int64
		)
		if err := rows.Scan(&record.Version, &appliedAt, &record.Checksum, &millis); err != nil {
			return nil, NewMigrationError("", "", "scan applied migration", err)
		}
		if parsed, err := time.Parse(time.RFC3339, appliedAt); err == nil {
			record.AppliedAt = parsed
		}
		record.ExecutionTime = time.Duration(millis) * time.Millisecond
		applied = append(applied, record)
	}
	if err := rows.Err(); err != nil {
		return nil, NewMigrationError("", "", "iterate applied migrations", err)
	}
	return applied, nil
}
