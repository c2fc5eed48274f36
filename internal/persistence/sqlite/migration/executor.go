package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Executor runs individual migrations against the database and maintains the
// schema_migrations tracking table.
type Executor struct {
	db *sql.DB
}

// NewExecutor constructs an executor bound to the provided database.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// InitializeVersionTable creates the schema_migrations table if missing.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)
	`
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return newError("", "schema_migrations", "initialize", err)
	}
	return nil
}

// IsApplied checks whether a migration version has already been applied.
func (e *Executor) IsApplied(ctx context.Context, version string) (bool, error) {
	var count int
	err := e.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, newError(version, "schema_migrations", "query", err)
	}
	return count > 0, nil
}

// AppliedVersions returns all applied migrations ordered by version.
func (e *Executor) AppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT version, applied_at, execution_time_ms FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, newError("", "schema_migrations", "query", err)
	}
	defer rows.Close()

	applied := make([]AppliedMigration, 0)
	for rows.Next() {
		var record AppliedMigration
		var appliedAt string
		var executionMs int64
		if err := rows.Scan(&record.Version, &appliedAt, &executionMs); err != nil {
			return nil, newError("", "schema_migrations", "scan", err)
		}
		if record.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, newError(record.Version, "schema_migrations", "parse", err)
		}
		record.ExecutionTime = time.Duration(executionMs) * time.Millisecond
		applied = append(applied, record)
	}

	if err := rows.Err(); err != nil {
		return nil, newError("", "schema_migrations", "iterate", err)
	}
	return applied, nil
}

// Execute runs a single migration and records it, all within one transaction
// so a failed migration leaves no partial schema behind.
func (e *Executor) Execute(ctx context.Context, migration Migration) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return newError(migration.Version, migration.Path, "begin", err)
	}

	started := time.Now()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		_ = tx.Rollback()
		return newError(migration.Version, migration.Path, "execute",
			fmt.Errorf("%w: %v", ErrMigrationFailed, err))
	}

	elapsed := time.Since(started)
	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at, execution_time_ms) VALUES (?, ?, ?)",
		migration.Version,
		time.Now().UTC().Format(time.RFC3339),
		elapsed.Milliseconds(),
	)
	if err != nil {
		_ = tx.Rollback()
		return newError(migration.Version, migration.Path, "record", err)
	}

	if err := tx.Commit(); err != nil {
		return newError(migration.Version, migration.Path, "commit", err)
	}
	return nil
}
