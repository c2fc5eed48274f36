package migration

import "time"

// Migration represents a database migration with its metadata and SQL content.
type Migration struct {
	Version     string // version identifier, e.g. "001"
	Description string // human-readable description parsed from the file name
	SQL         string // SQL statements to execute
	Path        string // path of the migration file inside the source FS
}

// AppliedMigration represents a migration recorded in schema_migrations.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
}

// Status summarizes the current migration state of a database.
type Status struct {
	CurrentVersion string
	PendingCount   int
	Applied        []AppliedMigration
	Pending        []Migration
}
