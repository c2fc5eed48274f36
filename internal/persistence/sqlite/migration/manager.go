package migration

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
)

// Manager orchestrates the migration process: it scans the migration source,
// skips applied versions, and executes pending migrations in order.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	dir      string
	logger   *slog.Logger
}

// NewManager constructs a manager over the provided database and migration
// filesystem. dir is the directory inside source that holds the .sql files.
func NewManager(db *sql.DB, source fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  NewScanner(source),
		executor: NewExecutor(db),
		dir:      dir,
		logger:   logger,
	}
}

// Run executes all pending migrations in sequential order.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return err
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date")
		return nil
	}

	for _, migration := range pending {
		m.logger.InfoContext(ctx, "applying migration",
			"version", migration.Version,
			"description", migration.Description,
		)
		if err := m.executor.Execute(ctx, migration); err != nil {
			return err
		}
	}

	m.logger.InfoContext(ctx, "migrations applied", "count", len(pending))
	return nil
}

// Pending returns migrations that have not been applied yet, in order.
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	migrations, err := m.scanner.Scan(m.dir)
	if err != nil {
		return nil, err
	}

	applied, err := m.executor.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[string]struct{}, len(applied))
	for _, record := range applied {
		appliedSet[record.Version] = struct{}{}
	}

	pending := make([]Migration, 0, len(migrations))
	for _, migration := range migrations {
		if _, ok := appliedSet[migration.Version]; ok {
			continue
		}
		pending = append(pending, migration)
	}
	return pending, nil
}

// CurrentStatus reports the applied and pending migrations for diagnostics.
func (m *Manager) CurrentStatus(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.executor.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{
		PendingCount: len(pending),
		Applied:      applied,
		Pending:      pending,
	}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}
