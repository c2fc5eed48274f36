// Package sqlite implements the persistence repositories over a SQLite
// database accessed through database/sql and the modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/interview-tracker/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store bundles the SQLite-backed repositories behind a single handle.
type Store struct {
	pool   *ConnectionPool
	logger *slog.Logger

	Users       *UserRepository
	Permissions *PermissionRepository
	Calls       *CallRepository
	Sessions    *SessionRepository
}

// Open initialises a store over the provided DSN. Migrate must be called
// before the repositories are used against a fresh database.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}

	return &Store{
		pool:        pool,
		logger:      logger,
		Users:       NewUserRepository(pool),
		Permissions: NewPermissionRepository(pool),
		Calls:       NewCallRepository(pool),
		Sessions:    NewSessionRepository(pool),
	}, nil
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	manager := migration.NewManager(s.pool.DB(), migrationFiles, "migrations", s.logger)
	return manager.Run(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.pool.Close()
}
