package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/interview-tracker/internal/lifecycle"
	"github.com/example/interview-tracker/internal/persistence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	dsn := filepath.Join(dir, "tracker.db")
	store, err := Open(dsn, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return store
}

func seedUser(t *testing.T, ctx context.Context, store *Store, id, email string) persistence.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	user := persistence.User{
		ID:           id,
		Email:        email,
		DisplayName:  id,
		PasswordHash: "hash-" + id,
		Role:         "standard",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.Users.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
	return user
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	user := persistence.User{
		ID:           "user-1",
		Email:        "  Alice@Example.COM ",
		DisplayName:  "Alice",
		PasswordHash: "hash-1",
		Role:         "admin",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := store.Users.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	fetched, err := store.Users.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if fetched.Email != "alice@example.com" {
		t.Fatalf("expected a normalized email, got %q", fetched.Email)
	}
	if fetched.Role != "admin" || fetched.PasswordHash != "hash-1" {
		t.Fatalf("unexpected user retrieved: %#v", fetched)
	}
	if !fetched.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, fetched.CreatedAt)
	}

	// Lookup by email is case-insensitive through the same normalization.
	if _, err := store.Users.GetUserByEmail(ctx, "ALICE@example.com"); err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}

	duplicate := user
	duplicate.ID = "user-2"
	if err := store.Users.CreateUser(ctx, duplicate); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for a reused email, got %v", err)
	}

	user.DisplayName = "Alice Updated"
	user.Role = "standard"
	user.UpdatedAt = now.Add(time.Minute)
	if err := store.Users.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	fetched, err = store.Users.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser after update failed: %v", err)
	}
	if fetched.DisplayName != "Alice Updated" || fetched.Role != "standard" {
		t.Fatalf("unexpected user after update: %#v", fetched)
	}

	missing := user
	missing.ID = "user-missing"
	if err := store.Users.UpdateUser(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating a missing user, got %v", err)
	}

	seedUser(t, ctx, store, "user-3", "bob@example.com")

	users, err := store.Users.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Email != "alice@example.com" || users[1].Email != "bob@example.com" {
		t.Fatalf("expected email ordering, got %#v", users)
	}

	if err := store.Users.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if err := store.Users.DeleteUser(ctx, user.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	if _, err := store.Users.GetUser(ctx, user.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestUserRepository_RejectsUnknownRole(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	user := persistence.User{
		ID:           "user-1",
		Email:        "x@example.com",
		DisplayName:  "X",
		PasswordHash: "hash",
		Role:         "wizard",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := store.Users.CreateUser(ctx, user); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for an unknown role, got %v", err)
	}
}

func TestPermissionRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seedUser(t, ctx, store, "admin-1", "admin@example.com")
	seedUser(t, ctx, store, "viewer", "viewer@example.com")
	seedUser(t, ctx, store, "alpha", "alpha@example.com")
	seedUser(t, ctx, store, "beta", "beta@example.com")

	now := time.Now().UTC().Truncate(time.Second)
	grant := persistence.PermissionGrant{
		ID:          "grant-1",
		ViewerID:    "viewer",
		TargetID:    "beta",
		GrantedByID: "admin-1",
		GrantedAt:   now,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := store.Permissions.CreateGrant(ctx, grant); err != nil {
		t.Fatalf("CreateGrant failed: %v", err)
	}

	fetched, err := store.Permissions.FindGrant(ctx, "viewer", "beta")
	if err != nil {
		t.Fatalf("FindGrant failed: %v", err)
	}
	if fetched.ID != "grant-1" || !fetched.IsActive {
		t.Fatalf("unexpected grant retrieved: %#v", fetched)
	}

	// One row per (viewer, target) pair.
	duplicate := grant
	duplicate.ID = "grant-dup"
	if err := store.Permissions.CreateGrant(ctx, duplicate); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for a repeated pair, got %v", err)
	}

	// Revocation keeps the row and flips is_active.
	fetched.IsActive = false
	fetched.UpdatedAt = now.Add(time.Minute)
	if err := store.Permissions.UpdateGrant(ctx, fetched); err != nil {
		t.Fatalf("UpdateGrant failed: %v", err)
	}
	revoked, err := store.Permissions.GetGrant(ctx, "grant-1")
	if err != nil {
		t.Fatalf("GetGrant failed: %v", err)
	}
	if revoked.IsActive {
		t.Fatalf("expected grant to be inactive, got %#v", revoked)
	}

	// Restore reactivates under a new grantor and timestamp.
	revoked.IsActive = true
	revoked.GrantedByID = "admin-1"
	revoked.GrantedAt = now.Add(2 * time.Minute)
	revoked.UpdatedAt = now.Add(2 * time.Minute)
	if err := store.Permissions.UpdateGrant(ctx, revoked); err != nil {
		t.Fatalf("UpdateGrant restore failed: %v", err)
	}

	inactive := persistence.PermissionGrant{
		ID: "grant-2", ViewerID: "viewer", TargetID: "alpha", GrantedByID: "admin-1",
		GrantedAt: now, IsActive: false, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.Permissions.CreateGrant(ctx, inactive); err != nil {
		t.Fatalf("CreateGrant failed: %v", err)
	}

	all, err := store.Permissions.ListGrantsForViewer(ctx, "viewer", false)
	if err != nil {
		t.Fatalf("ListGrantsForViewer failed: %v", err)
	}
	if len(all) != 2 || all[0].TargetID != "alpha" || all[1].TargetID != "beta" {
		t.Fatalf("expected target ordering, got %#v", all)
	}

	active, err := store.Permissions.ListGrantsForViewer(ctx, "viewer", true)
	if err != nil {
		t.Fatalf("ListGrantsForViewer activeOnly failed: %v", err)
	}
	if len(active) != 1 || active[0].TargetID != "beta" {
		t.Fatalf("expected only the active grant, got %#v", active)
	}

	everything, err := store.Permissions.ListGrants(ctx, false)
	if err != nil {
		t.Fatalf("ListGrants failed: %v", err)
	}
	if len(everything) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(everything))
	}

	selfGrant := persistence.PermissionGrant{
		ID: "grant-self", ViewerID: "viewer", TargetID: "viewer", GrantedByID: "admin-1",
		GrantedAt: now, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.Permissions.CreateGrant(ctx, selfGrant); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for a self grant, got %v", err)
	}

	orphan := persistence.PermissionGrant{
		ID: "grant-orphan", ViewerID: "viewer", TargetID: "nobody", GrantedByID: "admin-1",
		GrantedAt: now, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.Permissions.CreateGrant(ctx, orphan); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation for an unknown target, got %v", err)
	}

	// Deleting the viewer cascades to their grants.
	if err := store.Users.DeleteUser(ctx, "viewer"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := store.Permissions.GetGrant(ctx, "grant-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected grants to cascade away with the viewer, got %v", err)
	}
}

func TestCallRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seedUser(t, ctx, store, "owner-1", "owner1@example.com")
	seedUser(t, ctx, store, "owner-2", "owner2@example.com")

	now := time.Now().UTC().Truncate(time.Second)
	makeCall := func(id, owner string, scheduledAt time.Time, status lifecycle.Status) persistence.Call {
		return persistence.Call{
			ID:              id,
			OwnerID:         owner,
			Contact:         "Candidate " + id,
			Subject:         "Screen",
			ScheduledAt:     scheduledAt,
			DurationMinutes: 30,
			Status:          status,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}

	for _, call := range []persistence.Call{
		makeCall("call-late", "owner-1", now.Add(2*time.Hour), lifecycle.StatusScheduled),
		makeCall("call-early", "owner-1", now.Add(time.Hour), lifecycle.StatusScheduled),
		makeCall("call-done", "owner-1", now.Add(30*time.Minute), lifecycle.StatusCompleted),
		makeCall("call-other", "owner-2", now.Add(time.Minute), lifecycle.StatusScheduled),
	} {
		if err := store.Calls.CreateCall(ctx, call); err != nil {
			t.Fatalf("CreateCall %s failed: %v", call.ID, err)
		}
	}

	fetched, err := store.Calls.GetCall(ctx, "call-early")
	if err != nil {
		t.Fatalf("GetCall failed: %v", err)
	}
	if fetched.OwnerID != "owner-1" || fetched.Status != lifecycle.StatusScheduled {
		t.Fatalf("unexpected call retrieved: %#v", fetched)
	}
	if !fetched.ScheduledAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected scheduled time: %v", fetched.ScheduledAt)
	}

	calls, err := store.Calls.ListCalls(ctx, persistence.CallFilter{
		OwnerIDs: []string{"owner-1"},
		Statuses: []lifecycle.Status{lifecycle.StatusScheduled},
	})
	if err != nil {
		t.Fatalf("ListCalls failed: %v", err)
	}
	if len(calls) != 2 || calls[0].ID != "call-early" || calls[1].ID != "call-late" {
		t.Fatalf("expected scheduled calls soonest first, got %#v", calls)
	}

	everything, err := store.Calls.ListCalls(ctx, persistence.CallFilter{})
	if err != nil {
		t.Fatalf("ListCalls without filter failed: %v", err)
	}
	if len(everything) != 4 {
		t.Fatalf("expected 4 calls, got %d", len(everything))
	}

	// Metadata updates leave status and scheduled time alone.
	fetched.Contact = "Candidate Renamed"
	fetched.Notes = "moved teams"
	fetched.Status = lifecycle.StatusCancelled
	fetched.UpdatedAt = now.Add(time.Minute)
	if err := store.Calls.UpdateCall(ctx, fetched); err != nil {
		t.Fatalf("UpdateCall failed: %v", err)
	}
	updated, err := store.Calls.GetCall(ctx, "call-early")
	if err != nil {
		t.Fatalf("GetCall after update failed: %v", err)
	}
	if updated.Contact != "Candidate Renamed" || updated.Notes != "moved teams" {
		t.Fatalf("unexpected call after update: %#v", updated)
	}
	if updated.Status != lifecycle.StatusScheduled {
		t.Fatalf("expected UpdateCall to leave status untouched, got %q", updated.Status)
	}

	newTime := now.Add(4 * time.Hour)
	if err := store.Calls.UpdateCallStatus(ctx, "call-early", lifecycle.StatusScheduled, newTime, "pushed back", now.Add(2*time.Minute)); err != nil {
		t.Fatalf("UpdateCallStatus failed: %v", err)
	}
	rescheduled, err := store.Calls.GetCall(ctx, "call-early")
	if err != nil {
		t.Fatalf("GetCall after reschedule failed: %v", err)
	}
	if !rescheduled.ScheduledAt.Equal(newTime) || rescheduled.Notes != "pushed back" {
		t.Fatalf("unexpected call after reschedule: %#v", rescheduled)
	}

	if err := store.Calls.UpdateCallStatus(ctx, "call-missing", lifecycle.StatusCompleted, now, "", now); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing call, got %v", err)
	}

	if err := store.Calls.DeleteCall(ctx, "call-done"); err != nil {
		t.Fatalf("DeleteCall failed: %v", err)
	}
	if err := store.Calls.DeleteCall(ctx, "call-done"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestCallRepository_RejectsNonPositiveDuration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seedUser(t, ctx, store, "owner-1", "owner1@example.com")

	now := time.Now().UTC().Truncate(time.Second)
	call := persistence.Call{
		ID:          "call-1",
		OwnerID:     "owner-1",
		Contact:     "Candidate",
		Subject:     "Screen",
		ScheduledAt: now,
		Status:      lifecycle.StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := store.Calls.CreateCall(ctx, call); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for a zero duration, got %v", err)
	}
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seedUser(t, ctx, store, "user-1", "alice@example.com")

	now := time.Now().UTC().Truncate(time.Second)
	session := persistence.Session{
		ID:        "session-1",
		UserID:    "user-1",
		Token:     "token-1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := store.Sessions.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	fetched, err := store.Sessions.GetSession(ctx, "token-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if fetched.UserID != "user-1" || fetched.RevokedAt != nil {
		t.Fatalf("unexpected session retrieved: %#v", fetched)
	}
	if !fetched.ExpiresAt.Equal(session.ExpiresAt) {
		t.Fatalf("unexpected expiry: %v", fetched.ExpiresAt)
	}

	// A refresh rotates the token in place.
	fetched.Token = "token-2"
	fetched.ExpiresAt = now.Add(2 * time.Hour)
	fetched.UpdatedAt = now.Add(time.Minute)
	if _, err := store.Sessions.UpdateSession(ctx, fetched); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if _, err := store.Sessions.GetSession(ctx, "token-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected the old token to be gone, got %v", err)
	}
	rotated, err := store.Sessions.GetSession(ctx, "token-2")
	if err != nil {
		t.Fatalf("GetSession after rotation failed: %v", err)
	}
	if !rotated.ExpiresAt.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("unexpected expiry after rotation: %v", rotated.ExpiresAt)
	}

	firstRevocation := now.Add(2 * time.Minute)
	revoked, err := store.Sessions.RevokeSession(ctx, "token-2", firstRevocation)
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil || !revoked.RevokedAt.Equal(firstRevocation) {
		t.Fatalf("unexpected revocation time: %#v", revoked.RevokedAt)
	}

	// Revoking again keeps the original revocation time.
	again, err := store.Sessions.RevokeSession(ctx, "token-2", now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("second RevokeSession failed: %v", err)
	}
	if again.RevokedAt == nil || !again.RevokedAt.Equal(firstRevocation) {
		t.Fatalf("expected the first revocation time to stick, got %#v", again.RevokedAt)
	}

	if _, err := store.Sessions.RevokeSession(ctx, "token-unknown", now); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown token, got %v", err)
	}

	expired := persistence.Session{
		ID:        "session-2",
		UserID:    "user-1",
		Token:     "token-old",
		ExpiresAt: now.Add(-time.Hour),
		CreatedAt: now.Add(-2 * time.Hour),
		UpdatedAt: now.Add(-2 * time.Hour),
	}
	if _, err := store.Sessions.CreateSession(ctx, expired); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := store.Sessions.DeleteExpiredSessions(ctx, now); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if _, err := store.Sessions.GetSession(ctx, "token-old"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected the expired session to be gone, got %v", err)
	}
	if _, err := store.Sessions.GetSession(ctx, "token-2"); err != nil {
		t.Fatalf("expected the live session to remain, got %v", err)
	}

	// Deleting the user cascades to their sessions.
	if err := store.Users.DeleteUser(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := store.Sessions.GetSession(ctx, "token-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected sessions to cascade away with the user, got %v", err)
	}
}
