package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	scanner  *Scanner
	executor Executor
	dir      string
	logger   *slog.Logger
}

// NewManager creates a Manager reading migration files from dir within fsys.
func NewManager(fsys fs.FS, dir string, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  NewScanner(fsys),
		executor: executor,
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
}

// Run applies every pending migration. It stops at the first failure; the
// failed migration's own transaction is rolled back.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		m.logger.ErrorContext(ctx, "initialize version table failed", "error", err)
		return err
	}

	status, err := m.Status(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "migration status failed", "error", err)
		return err
	}

	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)

	for _, migration := range status.Pending {
		migrationStarted := time.Now()
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		elapsed := time.Since(migrationStarted)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			m.logger.ErrorContext(ctx, "record migration failed", "version", migration.Version, "error", err)
			return err
		}

		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", elapsed,
		)
	}

	m.logger.InfoContext(ctx, "migrations complete",
		"applied", len(status.Pending),
		"duration", time.Since(started),
	)
	return nil
}

// Status compares the migration files with schema_migrations.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	available, err := m.scanner.Scan(m.dir)
	if err != nil {
		return Status{}, err
	}

	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, err
	}

	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	status := Status{Applied: applied}
	for _, record := range applied {
		appliedByVersion[record.Version] = record
		if versionNumber(record.Version) > versionNumber(status.CurrentVersion) {
			status.CurrentVersion = record.Version
		}
	}

	for _, migration := range available {
		record, ok := appliedByVersion[migration.Version]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}

// validateSequence rejects gaps in file versions and applied versions with no file.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	known := make(map[int]bool, len(available))
	for i, migration := range available {
		version := versionNumber(migration.Version)
		if i > 0 && version != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, versionNumber(available[i-1].Version)+1)
		}
		known[version] = true
	}
	for _, record := range applied {
		if !known[versionNumber(record.Version)] {
			return fmt.Errorf("%w: applied migration %s has no file", ErrVersionConflict, record.Version)
		}
	}
	return nil
}
