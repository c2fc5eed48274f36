package application

import (
	"time"

	"github.com/example/interview-tracker/internal/lifecycle"
)

// Role identifies the access tier of an account.
type Role string

const (
	// RoleAdmin may manage users and permission grants and sees every call.
	RoleAdmin Role = "admin"
	// RoleStandard owns calls and may view schedules granted to them.
	RoleStandard Role = "standard"
	// RoleCaller owns calls but cannot receive visibility grants over others.
	RoleCaller Role = "caller"
)

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStandard, RoleCaller:
		return true
	}
	return false
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	Role        Role
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user. An empty
// Password leaves the stored hash untouched.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// PermissionGrant records that a viewer may see a target user's call schedule.
type PermissionGrant struct {
	ID          string
	ViewerID    string
	TargetID    string
	GrantedByID string
	GrantedAt   time.Time
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GrantPermissionsParams wraps a batch grant request: one viewer, many targets.
type GrantPermissionsParams struct {
	Principal Principal
	ViewerID  string
	TargetIDs []string
}

// GrantFailure records why a single target in a batch grant was rejected.
type GrantFailure struct {
	TargetID string
	Reason   string
}

// GrantResult partitions the outcome of a batch grant. Each requested target
// lands in exactly one bucket.
type GrantResult struct {
	Created       []PermissionGrant
	Restored      []PermissionGrant
	AlreadyActive []PermissionGrant
	Failed        []GrantFailure
}

// TargetSet describes whose calls a viewer may currently see.
type TargetSet struct {
	// All marks the admin wildcard; IDs is ignored when set.
	All bool
	// IDs lists the visible owner IDs, always including the viewer's own.
	IDs []string
}

// Contains reports whether calls owned by the given user are visible.
func (t TargetSet) Contains(ownerID string) bool {
	if t.All {
		return true
	}
	for _, id := range t.IDs {
		if id == ownerID {
			return true
		}
	}
	return false
}

// CallInput captures caller provided call fields.
type CallInput struct {
	Contact         string
	Subject         string
	ScheduledAt     time.Time
	DurationMinutes int
	Priority        int
	Notes           string
}

// Call represents a scheduled interview or phone call.
type Call struct {
	ID              string
	OwnerID         string
	Contact         string
	Subject         string
	ScheduledAt     time.Time
	DurationMinutes int
	Status          lifecycle.Status
	Priority        int
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateCallParams wraps the data required to create a call.
type CreateCallParams struct {
	Principal Principal
	Input     CallInput
}

// UpdateCallParams wraps the data required to update a call's metadata.
type UpdateCallParams struct {
	Principal Principal
	CallID    string
	Input     CallInput
}

// RescheduleCallParams wraps the data required to move a call to a new time.
type RescheduleCallParams struct {
	Principal Principal
	CallID    string
	NewTime   time.Time
	Notes     string
}

// VisibleCallsParams wraps the data required to list a viewer's visible calls.
type VisibleCallsParams struct {
	Principal Principal
	// Statuses optionally restricts results; nil means every status.
	Statuses []lifecycle.Status
}

// CallEventType labels a lifecycle change broadcast to observers.
type CallEventType string

const (
	CallEventStarted     CallEventType = "started"
	CallEventCompleted   CallEventType = "completed"
	CallEventFailed      CallEventType = "failed"
	CallEventRescheduled CallEventType = "rescheduled"
	CallEventCancelled   CallEventType = "cancelled"
	CallEventDeleted     CallEventType = "deleted"
)

// CallEvent describes a lifecycle change on a call. Call holds the state
// after the change took effect.
type CallEvent struct {
	Type       CallEventType
	Call       Call
	OccurredAt time.Time
}

// CallObserver receives lifecycle events after they have been persisted.
type CallObserver interface {
	NotifyCallEvent(event CallEvent)
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
