package main

import (
	"context"
	"errors"
	"time"

	"github.com/example/interview-tracker/internal/application"
	"github.com/example/interview-tracker/internal/lifecycle"
	"github.com/example/interview-tracker/internal/notify"
	"github.com/example/interview-tracker/internal/persistence"
)

// mapPersistenceError translates storage sentinels into the application
// error taxonomy so services and handlers never see persistence errors.
func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return application.ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return application.ErrAlreadyExists
	default:
		return err
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationUser(user persistence.User) application.User {
	return application.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        application.Role(user.Role),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

// UpdateUser keeps the stored password hash when the caller passes an empty
// one.
func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if passwordHash == "" {
		current, err := a.repo.GetUser(ctx, user.ID)
		if err != nil {
			return application.User{}, mapPersistenceError(err)
		}
		passwordHash = current.PasswordHash
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, mapPersistenceError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return mapPersistenceError(a.repo.DeleteUser(ctx, id))
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	stored, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	users := make([]application.User, 0, len(stored))
	for _, user := range stored {
		users = append(users, toApplicationUser(user))
	}
	return users, nil
}

func toPersistenceGrant(grant application.PermissionGrant) persistence.PermissionGrant {
	return persistence.PermissionGrant(grant)
}

func toApplicationGrant(grant persistence.PermissionGrant) application.PermissionGrant {
	return application.PermissionGrant(grant)
}

type permissionRepositoryAdapter struct {
	repo persistence.PermissionRepository
}

func newPermissionRepositoryAdapter(repo persistence.PermissionRepository) *permissionRepositoryAdapter {
	return &permissionRepositoryAdapter{repo: repo}
}

func (a *permissionRepositoryAdapter) CreateGrant(ctx context.Context, grant application.PermissionGrant) (application.PermissionGrant, error) {
	if err := a.repo.CreateGrant(ctx, toPersistenceGrant(grant)); err != nil {
		return application.PermissionGrant{}, mapPersistenceError(err)
	}
	return grant, nil
}

func (a *permissionRepositoryAdapter) GetGrant(ctx context.Context, id string) (application.PermissionGrant, error) {
	stored, err := a.repo.GetGrant(ctx, id)
	if err != nil {
		return application.PermissionGrant{}, mapPersistenceError(err)
	}
	return toApplicationGrant(stored), nil
}

func (a *permissionRepositoryAdapter) FindGrant(ctx context.Context, viewerID, targetID string) (application.PermissionGrant, error) {
	stored, err := a.repo.FindGrant(ctx, viewerID, targetID)
	if err != nil {
		return application.PermissionGrant{}, mapPersistenceError(err)
	}
	return toApplicationGrant(stored), nil
}

func (a *permissionRepositoryAdapter) UpdateGrant(ctx context.Context, grant application.PermissionGrant) (application.PermissionGrant, error) {
	if err := a.repo.UpdateGrant(ctx, toPersistenceGrant(grant)); err != nil {
		return application.PermissionGrant{}, mapPersistenceError(err)
	}
	return grant, nil
}

func (a *permissionRepositoryAdapter) ListGrantsForViewer(ctx context.Context, viewerID string, activeOnly bool) ([]application.PermissionGrant, error) {
	stored, err := a.repo.ListGrantsForViewer(ctx, viewerID, activeOnly)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	grants := make([]application.PermissionGrant, 0, len(stored))
	for _, grant := range stored {
		grants = append(grants, toApplicationGrant(grant))
	}
	return grants, nil
}

func (a *permissionRepositoryAdapter) ListGrants(ctx context.Context, activeOnly bool) ([]application.PermissionGrant, error) {
	stored, err := a.repo.ListGrants(ctx, activeOnly)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	grants := make([]application.PermissionGrant, 0, len(stored))
	for _, grant := range stored {
		grants = append(grants, toApplicationGrant(grant))
	}
	return grants, nil
}

func toPersistenceCall(call application.Call) persistence.Call {
	return persistence.Call(call)
}

func toApplicationCall(call persistence.Call) application.Call {
	return application.Call(call)
}

type callRepositoryAdapter struct {
	repo persistence.CallRepository
}

func newCallRepositoryAdapter(repo persistence.CallRepository) *callRepositoryAdapter {
	return &callRepositoryAdapter{repo: repo}
}

func (a *callRepositoryAdapter) CreateCall(ctx context.Context, call application.Call) (application.Call, error) {
	if err := a.repo.CreateCall(ctx, toPersistenceCall(call)); err != nil {
		return application.Call{}, mapPersistenceError(err)
	}
	return call, nil
}

func (a *callRepositoryAdapter) GetCall(ctx context.Context, id string) (application.Call, error) {
	stored, err := a.repo.GetCall(ctx, id)
	if err != nil {
		return application.Call{}, mapPersistenceError(err)
	}
	return toApplicationCall(stored), nil
}

func (a *callRepositoryAdapter) UpdateCall(ctx context.Context, call application.Call) (application.Call, error) {
	if err := a.repo.UpdateCall(ctx, toPersistenceCall(call)); err != nil {
		return application.Call{}, mapPersistenceError(err)
	}
	return call, nil
}

func (a *callRepositoryAdapter) UpdateCallStatus(ctx context.Context, id string, status lifecycle.Status, scheduledAt time.Time, notes string, updatedAt time.Time) (application.Call, error) {
	if err := a.repo.UpdateCallStatus(ctx, id, status, scheduledAt, notes, updatedAt); err != nil {
		return application.Call{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetCall(ctx, id)
	if err != nil {
		return application.Call{}, mapPersistenceError(err)
	}
	return toApplicationCall(stored), nil
}

func (a *callRepositoryAdapter) ListCalls(ctx context.Context, filter application.CallListFilter) ([]application.Call, error) {
	stored, err := a.repo.ListCalls(ctx, persistence.CallFilter{
		OwnerIDs: filter.OwnerIDs,
		Statuses: filter.Statuses,
	})
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	calls := make([]application.Call, 0, len(stored))
	for _, call := range stored {
		calls = append(calls, toApplicationCall(call))
	}
	return calls, nil
}

func (a *callRepositoryAdapter) DeleteCall(ctx context.Context, id string) error {
	return mapPersistenceError(a.repo.DeleteCall(ctx, id))
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session(session)
}

func toApplicationSession(session persistence.Session) application.Session {
	return application.Session(session)
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return mapPersistenceError(a.repo.DeleteExpiredSessions(ctx, reference))
}

// scheduleSourceAdapter feeds the notification schedulers from the call
// service so visibility filtering stays in one place.
type scheduleSourceAdapter struct {
	calls *application.CallService
}

func newScheduleSourceAdapter(calls *application.CallService) *scheduleSourceAdapter {
	return &scheduleSourceAdapter{calls: calls}
}

func (a *scheduleSourceAdapter) VisibleScheduledCalls(ctx context.Context, viewerID string) ([]application.Call, error) {
	return a.calls.VisibleCalls(ctx, application.VisibleCallsParams{
		Principal: application.Principal{UserID: viewerID},
		Statuses:  []lifecycle.Status{lifecycle.StatusScheduled},
	})
}

// authServiceAdapter couples session issuance and revocation to the
// notification manager so a viewer's scheduler runs exactly while they are
// signed in.
type authServiceAdapter struct {
	service *application.AuthService
	manager *notify.Manager
}

func newAuthServiceAdapter(service *application.AuthService, manager *notify.Manager) *authServiceAdapter {
	return &authServiceAdapter{service: service, manager: manager}
}

func (a *authServiceAdapter) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	result, err := a.service.Authenticate(ctx, params)
	if err != nil {
		return application.AuthenticateResult{}, err
	}
	a.manager.StartViewer(result.User.ID)
	return result, nil
}

func (a *authServiceAdapter) RefreshSession(ctx context.Context, token, fingerprint string) (application.Session, error) {
	return a.service.RefreshSession(ctx, token, fingerprint)
}

func (a *authServiceAdapter) RevokeSession(ctx context.Context, token string) error {
	// Resolve the principal before the token dies so their scheduler can be
	// stopped. A stale token still gets revoked.
	principal, validateErr := a.service.ValidateSession(ctx, token)

	if err := a.service.RevokeSession(ctx, token); err != nil {
		return err
	}
	if validateErr == nil {
		a.manager.StopViewer(principal.UserID)
	}
	return nil
}
