package migration

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func sourceFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys["migrations/"+name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func TestScanner(t *testing.T) {
	t.Run("returns migrations ordered by version", func(t *testing.T) {
		scanner := NewScanner(sourceFS(map[string]string{
			"002_add_widgets.sql":   "CREATE TABLE widgets (id TEXT);",
			"001_create_things.sql": "CREATE TABLE things (id TEXT);",
			"notes.txt":             "not a migration",
		}))

		migrations, err := scanner.Scan("migrations")
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if len(migrations) != 2 {
			t.Fatalf("expected 2 migrations, got %d", len(migrations))
		}
		if migrations[0].Version != "001" || migrations[1].Version != "002" {
			t.Fatalf("expected version ordering, got %#v", migrations)
		}
		if migrations[0].Description != "create things" {
			t.Fatalf("unexpected description: %q", migrations[0].Description)
		}
	})

	t.Run("rejects malformed file names", func(t *testing.T) {
		scanner := NewScanner(sourceFS(map[string]string{
			"1_short_version.sql": "SELECT 1;",
		}))

		if _, err := scanner.Scan("migrations"); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})

	t.Run("rejects empty migration files", func(t *testing.T) {
		scanner := NewScanner(sourceFS(map[string]string{
			"001_empty.sql": "   \n",
		}))

		if _, err := scanner.Scan("migrations"); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		scanner := NewScanner(sourceFS(map[string]string{
			"001_first.sql":  "SELECT 1;",
			"001_second.sql": "SELECT 2;",
		}))

		if _, err := scanner.Scan("migrations"); !errors.Is(err, ErrDuplicateVersion) {
			t.Fatalf("expected ErrDuplicateVersion, got %v", err)
		}
	})
}

func TestManagerRun(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	fsys := sourceFS(map[string]string{
		"001_create_things.sql": "CREATE TABLE things (id TEXT PRIMARY KEY);",
		"002_add_widgets.sql":   "CREATE TABLE widgets (id TEXT PRIMARY KEY);",
	})
	manager := NewManager(db, fsys, "migrations", nil)

	if err := manager.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, table := range []string{"things", "widgets"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s to exist: %v", table, err)
		}
	}

	status, err := manager.CurrentStatus(ctx)
	if err != nil {
		t.Fatalf("CurrentStatus failed: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount != 0 || len(status.Applied) != 2 {
		t.Fatalf("unexpected status: %#v", status)
	}

	// Running again applies nothing.
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	applied, err := NewExecutor(db).AppliedVersions(ctx)
	if err != nil {
		t.Fatalf("AppliedVersions failed: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied migrations after rerun, got %d", len(applied))
	}
}

func TestManagerRun_FailedMigrationLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	fsys := sourceFS(map[string]string{
		"001_create_things.sql": "CREATE TABLE things (id TEXT PRIMARY KEY);",
		"002_broken.sql":        "CREATE TABLE broken (id TEXT PRIMARY KEY;",
	})
	manager := NewManager(db, fsys, "migrations", nil)

	err := manager.Run(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}

	var migrationErr *Error
	if !errors.As(err, &migrationErr) || migrationErr.Version != "002" {
		t.Fatalf("expected the failing version in the error, got %v", err)
	}

	applied, err := NewExecutor(db).AppliedVersions(ctx)
	if err != nil {
		t.Fatalf("AppliedVersions failed: %v", err)
	}
	if len(applied) != 1 || applied[0].Version != "001" {
		t.Fatalf("expected only the first migration recorded, got %#v", applied)
	}
}

func TestExecutorIsApplied(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	executor := NewExecutor(db)

	if err := executor.InitializeVersionTable(ctx); err != nil {
		t.Fatalf("InitializeVersionTable failed: %v", err)
	}

	applied, err := executor.IsApplied(ctx, "001")
	if err != nil {
		t.Fatalf("IsApplied failed: %v", err)
	}
	if applied {
		t.Fatal("expected version 001 to be unapplied")
	}

	migration := Migration{
		Version:     "001",
		Description: "create things",
		SQL:         "CREATE TABLE things (id TEXT PRIMARY KEY);",
		Path:        "migrations/001_create_things.sql",
	}
	if err := executor.Execute(ctx, migration); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	applied, err = executor.IsApplied(ctx, "001")
	if err != nil {
		t.Fatalf("IsApplied after execute failed: %v", err)
	}
	if !applied {
		t.Fatal("expected version 001 to be applied")
	}
}
