package migration

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
)

// Migration files follow {version}_{description}.sql, e.g. "001_initial_schema.sql".
var fileNamePattern = regexp.MustCompile(`^(\d{3})_([a-z0-9_]+)\.sql$`)

// Scanner reads migration files from a filesystem, typically an embed.FS.
type Scanner struct {
	source fs.FS
}

// NewScanner constructs a scanner over the provided filesystem.
func NewScanner(source fs.FS) *Scanner {
	return &Scanner{source: source}
}

// Scan collects all migration files under dir, validates their names, and
// returns them ordered by version.
func (s *Scanner) Scan(dir string) ([]Migration, error) {
	if s == nil || s.source == nil {
		return nil, fmt.Errorf("migration: scanner source not configured")
	}

	entries, err := fs.ReadDir(s.source, dir)
	if err != nil {
		return nil, newError("", dir, "scan", err)
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[string]string, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		migration, err := s.parse(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		if prior, ok := seen[migration.Version]; ok {
			return nil, newError(migration.Version, migration.Path, "scan",
				fmt.Errorf("%w: also defined by %s", ErrDuplicateVersion, prior))
		}
		seen[migration.Version] = migration.Path

		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func (s *Scanner) parse(filePath string) (Migration, error) {
	name := path.Base(filePath)
	matches := fileNamePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, newError("", filePath, "parse", ErrInvalidMigrationFile)
	}

	content, err := fs.ReadFile(s.source, filePath)
	if err != nil {
		return Migration{}, newError(matches[1], filePath, "read", err)
	}

	sqlText := strings.TrimSpace(string(content))
	if sqlText == "" {
		return Migration{}, newError(matches[1], filePath, "parse", ErrInvalidMigrationFile)
	}

	return Migration{
		Version:     matches[1],
		Description: strings.ReplaceAll(matches[2], "_", " "),
		SQL:         sqlText,
		Path:        filePath,
	}, nil
}
