package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/interview-tracker/internal/lifecycle"
	"github.com/example/interview-tracker/internal/persistence"
)

// CallRepository implements persistence.CallRepository using SQLite.
type CallRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewCallRepository creates a new SQLite call repository.
func NewCallRepository(pool *ConnectionPool) *CallRepository {
	return &CallRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const callColumns = "id, owner_id, contact, subject, scheduled_at, duration_minutes, status, priority, notes, created_at, updated_at"

// CreateCall inserts a new call record.
func (r *CallRepository) CreateCall(ctx context.Context, call persistence.Call) error {
	if call.ID == "" || call.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO calls (` + callColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.helper.Exec(ctx, query,
		call.ID,
		call.OwnerID,
		call.Contact,
		call.Subject,
		call.ScheduledAt.UTC().Format(time.RFC3339),
		call.DurationMinutes,
		string(call.Status),
		call.Priority,
		call.Notes,
		call.CreatedAt.UTC().Format(time.RFC3339),
		call.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateCall rewrites a call's metadata. Owner, scheduled time, and status
// are intentionally left untouched: the scheduled time moves only through
// UpdateCallStatus during a reschedule transition.
func (r *CallRepository) UpdateCall(ctx context.Context, call persistence.Call) error {
	if call.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE calls
		SET contact = ?, subject = ?, duration_minutes = ?, priority = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.helper.Exec(ctx, query,
		call.Contact,
		call.Subject,
		call.DurationMinutes,
		call.Priority,
		call.Notes,
		call.UpdatedAt.UTC().Format(time.RFC3339),
		call.ID,
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

// UpdateCallStatus applies a lifecycle transition's persisted effects.
func (r *CallRepository) UpdateCallStatus(ctx context.Context, id string, status lifecycle.Status, scheduledAt time.Time, notes string, updatedAt time.Time) error {
	if id == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE calls
		SET status = ?, scheduled_at = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.helper.Exec(ctx, query,
		string(status),
		scheduledAt.UTC().Format(time.RFC3339),
		notes,
		updatedAt.UTC().Format(time.RFC3339),
		id,
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

// GetCall retrieves a call by ID.
func (r *CallRepository) GetCall(ctx context.Context, id string) (persistence.Call, error) {
	query := "SELECT " + callColumns + " FROM calls WHERE id = ?"

	row := r.helper.QueryRow(ctx, query, id)
	call, err := scanCall(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Call{}, persistence.ErrNotFound
		}
		return persistence.Call{}, r.mapper.MapError(err)
	}
	return call, nil
}

// ListCalls returns matching calls ordered ascending by scheduled time. The
// ordering is load-bearing: the notification scheduler scans soonest-first.
func (r *CallRepository) ListCalls(ctx context.Context, filter persistence.CallFilter) ([]persistence.Call, error) {
	query := "SELECT " + callColumns + " FROM calls"
	clauses := make([]string, 0, 2)
	args := make([]any, 0, len(filter.OwnerIDs)+len(filter.Statuses))

	if len(filter.OwnerIDs) > 0 {
		clauses = append(clauses, "owner_id IN ("+placeholders(len(filter.OwnerIDs))+")")
		for _, owner := range filter.OwnerIDs {
			args = append(args, owner)
		}
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY scheduled_at, id"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	calls := make([]persistence.Call, 0)
	for rows.Next() {
		call, err := scanCall(rows.Scan)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		calls = append(calls, call)
	}

	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return calls, nil
}

// DeleteCall removes a call record.
func (r *CallRepository) DeleteCall(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, "DELETE FROM calls WHERE id = ?", id)
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

func scanCall(scan func(dest ...any) error) (persistence.Call, error) {
	var call persistence.Call
	var status, scheduledAt, createdAt, updatedAt string

	err := scan(
		&call.ID,
		&call.OwnerID,
		&call.Contact,
		&call.Subject,
		&scheduledAt,
		&call.DurationMinutes,
		&status,
		&call.Priority,
		&call.Notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Call{}, err
	}

	call.Status = lifecycle.Status(status)
	if call.ScheduledAt, err = time.Parse(time.RFC3339, scheduledAt); err != nil {
		return persistence.Call{}, fmt.Errorf("failed to parse scheduled_at: %w", err)
	}
	if call.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Call{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if call.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Call{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return call, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
