// Package testfixtures provides deterministic clocks, identifier generators,
// and domain fixtures shared across the test suites.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/interview-tracker/internal/application"
	"github.com/example/interview-tracker/internal/lifecycle"
)

var (
	userCounter  uint64
	grantCounter uint64
	callCounter  uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// UserOption configures a generated user fixture.
type UserOption func(*application.User)

// WithRole overrides the fixture's role.
func WithRole(role application.Role) UserOption {
	return func(u *application.User) { u.Role = role }
}

// WithUserID overrides the fixture's identifier.
func WithUserID(id string) UserOption {
	return func(u *application.User) { u.ID = id }
}

// NewUser returns a deterministic standard-role user with optional overrides.
func NewUser(opts ...UserOption) application.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	user := application.User{
		ID:          id,
		Email:       fmt.Sprintf("%s@example.com", id),
		DisplayName: fmt.Sprintf("User %03d", idx),
		Role:        application.RoleStandard,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// NewGrant returns a deterministic active grant between the two users.
func NewGrant(viewerID, targetID string) application.PermissionGrant {
	idx := atomic.AddUint64(&grantCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	return application.PermissionGrant{
		ID:          fmt.Sprintf("grant-%03d", idx),
		ViewerID:    viewerID,
		TargetID:    targetID,
		GrantedByID: "admin-001",
		GrantedAt:   created,
		IsActive:    true,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// CallOption configures a generated call fixture.
type CallOption func(*application.Call)

// WithCallID overrides the fixture's identifier.
func WithCallID(id string) CallOption {
	return func(c *application.Call) { c.ID = id }
}

// WithScheduledAt overrides the fixture's scheduled time.
func WithScheduledAt(at time.Time) CallOption {
	return func(c *application.Call) { c.ScheduledAt = at }
}

// NewCall returns a deterministic scheduled call owned by the given user.
// Without overrides the call is scheduled one hour past ReferenceTime.
func NewCall(ownerID string, opts ...CallOption) application.Call {
	idx := atomic.AddUint64(&callCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	call := application.Call{
		ID:              fmt.Sprintf("call-%03d", idx),
		OwnerID:         ownerID,
		Contact:         fmt.Sprintf("Contact %03d", idx),
		Subject:         fmt.Sprintf("Interview %03d", idx),
		ScheduledAt:     referenceTime.Add(time.Hour),
		DurationMinutes: 30,
		Status:          lifecycle.StatusScheduled,
		Priority:        0,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	for _, opt := range opts {
		opt(&call)
	}
	return call
}
