package persistence

import (
	"context"
	"time"

	"github.com/example/interview-tracker/internal/lifecycle"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// PermissionRepository stores schedule-visibility grants. Revocation flips
// IsActive rather than deleting the row.
type PermissionRepository interface {
	CreateGrant(ctx context.Context, grant PermissionGrant) error
	GetGrant(ctx context.Context, id string) (PermissionGrant, error)
	// FindGrant looks up the unique grant row for a (viewer, target) pair
	// regardless of its active state.
	FindGrant(ctx context.Context, viewerID, targetID string) (PermissionGrant, error)
	UpdateGrant(ctx context.Context, grant PermissionGrant) error
	// ListGrantsForViewer returns grants where the user is the viewer,
	// optionally restricted to active ones.
	ListGrantsForViewer(ctx context.Context, viewerID string, activeOnly bool) ([]PermissionGrant, error)
	ListGrants(ctx context.Context, activeOnly bool) ([]PermissionGrant, error)
}

// CallFilter narrows call queries.
type CallFilter struct {
	// OwnerIDs restricts results to calls owned by the listed users. Nil
	// means no owner restriction (every call).
	OwnerIDs []string
	// Statuses restricts results to the listed statuses. Nil means all.
	Statuses []lifecycle.Status
}

// CallRepository stores call records.
type CallRepository interface {
	CreateCall(ctx context.Context, call Call) error
	UpdateCall(ctx context.Context, call Call) error
	// UpdateCallStatus applies a status change along with the fields a
	// transition is allowed to touch (scheduled time, notes).
	UpdateCallStatus(ctx context.Context, id string, status lifecycle.Status, scheduledAt time.Time, notes string, updatedAt time.Time) error
	GetCall(ctx context.Context, id string) (Call, error)
	// ListCalls returns matching calls ordered ascending by scheduled time.
	ListCalls(ctx context.Context, filter CallFilter) ([]Call, error)
	DeleteCall(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
