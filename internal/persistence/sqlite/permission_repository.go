package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/interview-tracker/internal/persistence"
)

// PermissionRepository implements persistence.PermissionRepository using SQLite.
type PermissionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewPermissionRepository creates a new SQLite permission repository.
func NewPermissionRepository(pool *ConnectionPool) *PermissionRepository {
	return &PermissionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const grantColumns = "id, viewer_id, target_id, granted_by_id, granted_at, is_active, created_at, updated_at"

// CreateGrant inserts a new permission grant. The schema's UNIQUE
// (viewer_id, target_id) constraint guarantees at most one row per pair.
func (r *PermissionRepository) CreateGrant(ctx context.Context, grant persistence.PermissionGrant) error {
	if grant.ID == "" || grant.ViewerID == "" || grant.TargetID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO permission_grants (` + grantColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.helper.Exec(ctx, query,
		grant.ID,
		grant.ViewerID,
		grant.TargetID,
		grant.GrantedByID,
		grant.GrantedAt.UTC().Format(time.RFC3339),
		boolToInt(grant.IsActive),
		grant.CreatedAt.UTC().Format(time.RFC3339),
		grant.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetGrant retrieves a grant by ID.
func (r *PermissionRepository) GetGrant(ctx context.Context, id string) (persistence.PermissionGrant, error) {
	return r.getGrant(ctx, "id = ?", id)
}

// FindGrant looks up the unique grant row for a (viewer, target) pair
// regardless of its active state.
func (r *PermissionRepository) FindGrant(ctx context.Context, viewerID, targetID string) (persistence.PermissionGrant, error) {
	return r.getGrant(ctx, "viewer_id = ? AND target_id = ?", viewerID, targetID)
}

func (r *PermissionRepository) getGrant(ctx context.Context, where string, args ...any) (persistence.PermissionGrant, error) {
	query := "SELECT " + grantColumns + " FROM permission_grants WHERE " + where

	row := r.helper.QueryRow(ctx, query, args...)
	grant, err := scanGrant(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.PermissionGrant{}, persistence.ErrNotFound
		}
		return persistence.PermissionGrant{}, r.mapper.MapError(err)
	}
	return grant, nil
}

// UpdateGrant rewrites the mutable fields of an existing grant row. Viewer
// and target are immutable; restore and revoke both go through this path.
func (r *PermissionRepository) UpdateGrant(ctx context.Context, grant persistence.PermissionGrant) error {
	if grant.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE permission_grants
		SET granted_by_id = ?, granted_at = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.helper.Exec(ctx, query,
		grant.GrantedByID,
		grant.GrantedAt.UTC().Format(time.RFC3339),
		boolToInt(grant.IsActive),
		grant.UpdatedAt.UTC().Format(time.RFC3339),
		grant.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListGrantsForViewer returns grants where the user is the viewer, ordered by
// target for stable output.
func (r *PermissionRepository) ListGrantsForViewer(ctx context.Context, viewerID string, activeOnly bool) ([]persistence.PermissionGrant, error) {
	query := "SELECT " + grantColumns + " FROM permission_grants WHERE viewer_id = ?"
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY target_id"

	return r.listGrants(ctx, query, viewerID)
}

// ListGrants returns every grant, ordered by viewer then target.
func (r *PermissionRepository) ListGrants(ctx context.Context, activeOnly bool) ([]persistence.PermissionGrant, error) {
	query := "SELECT " + grantColumns + " FROM permission_grants"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY viewer_id, target_id"

	return r.listGrants(ctx, query)
}

func (r *PermissionRepository) listGrants(ctx context.Context, query string, args ...any) ([]persistence.PermissionGrant, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	grants := make([]persistence.PermissionGrant, 0)
	for rows.Next() {
		grant, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return grants, nil
}

func scanGrant(scan func(dest ...any) error) (persistence.PermissionGrant, error) {
	var grant persistence.PermissionGrant
	var grantedAt, createdAt, updatedAt string
	var isActive int

	err := scan(
		&grant.ID,
		&grant.ViewerID,
		&grant.TargetID,
		&grant.GrantedByID,
		&grantedAt,
		&isActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.PermissionGrant{}, err
	}

	grant.IsActive = isActive != 0
	if grant.GrantedAt, err = time.Parse(time.RFC3339, grantedAt); err != nil {
		return persistence.PermissionGrant{}, fmt.Errorf("failed to parse granted_at: %w", err)
	}
	if grant.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.PermissionGrant{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if grant.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.PermissionGrant{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return grant, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
