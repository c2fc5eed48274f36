package persistence

import (
	"time"

	"github.com/example/interview-tracker/internal/lifecycle"
)

// User represents an account stored by the tracker.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PermissionGrant records that a viewer may see a target user's call
// schedule. Revoked grants are retained with IsActive false so they can be
// restored without losing audit history.
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

// Call represents a scheduled interview or phone call owned by a user.
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
