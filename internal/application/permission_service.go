package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// PermissionGrantRepository captures the persistence operations needed by the
// permission service.
type PermissionGrantRepository interface {
	CreateGrant(ctx context.Context, grant PermissionGrant) (PermissionGrant, error)
	GetGrant(ctx context.Context, id string) (PermissionGrant, error)
	FindGrant(ctx context.Context, viewerID, targetID string) (PermissionGrant, error)
	UpdateGrant(ctx context.Context, grant PermissionGrant) (PermissionGrant, error)
	ListGrantsForViewer(ctx context.Context, viewerID string, activeOnly bool) ([]PermissionGrant, error)
	ListGrants(ctx context.Context, activeOnly bool) ([]PermissionGrant, error)
}

// UserDirectory resolves user accounts referenced by grants.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// PermissionService manages schedule-visibility grants between users.
type PermissionService struct {
	grants      PermissionGrantRepository
	users       UserDirectory
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewPermissionService constructs a permission service with the provided dependencies.
func NewPermissionService(grants PermissionGrantRepository, users UserDirectory, idGenerator func() string, now func() time.Time) *PermissionService {
	return NewPermissionServiceWithLogger(grants, users, idGenerator, now, nil)
}

// NewPermissionServiceWithLogger constructs a permission service with a specified logger.
func NewPermissionServiceWithLogger(grants PermissionGrantRepository, users UserDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *PermissionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &PermissionService{
		grants:      grants,
		users:       users,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *PermissionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PermissionService", operation, attrs...)
}

// GrantPermissions grants one viewer visibility over a batch of target users.
// The whole batch is attempted: each target lands in exactly one result
// bucket, and an error is returned only when the request itself is invalid.
func (s *PermissionService) GrantPermissions(ctx context.Context, params GrantPermissionsParams) (result GrantResult, err error) {
	if s == nil {
		err = fmt.Errorf("PermissionService is nil")
		return
	}
	if s.grants == nil || s.users == nil {
		err = fmt.Errorf("permission repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "GrantPermissions",
		"principal_id", params.Principal.UserID,
		"viewer_id", params.ViewerID,
		"target_count", len(params.TargetIDs),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to grant permissions", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"created", len(result.Created),
			"restored", len(result.Restored),
			"already_active", len(result.AlreadyActive),
			"failed", len(result.Failed),
		).InfoContext(ctx, "permissions granted")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	if params.ViewerID == "" {
		vErr.add("viewer_id", "viewer is required")
	}
	if len(params.TargetIDs) == 0 {
		vErr.add("target_ids", "at least one target is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, err = s.users.GetUser(ctx, params.ViewerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrNotFound
		}
		return
	}

	now := s.now()
	seen := make(map[string]bool, len(params.TargetIDs))
	for _, targetID := range params.TargetIDs {
		if seen[targetID] {
			continue
		}
		seen[targetID] = true

		outcome, grantErr := s.grantOne(ctx, params.Principal, params.ViewerID, targetID, now)
		if grantErr != nil {
			result.Failed = append(result.Failed, GrantFailure{TargetID: targetID, Reason: grantErr.Error()})
			continue
		}
		switch outcome.kind {
		case grantCreated:
			result.Created = append(result.Created, outcome.grant)
		case grantRestored:
			result.Restored = append(result.Restored, outcome.grant)
		case grantAlreadyActive:
			result.AlreadyActive = append(result.AlreadyActive, outcome.grant)
		}
	}

	return
}

type grantOutcomeKind int

const (
	grantCreated grantOutcomeKind = iota
	grantRestored
	grantAlreadyActive
)

type grantOutcome struct {
	kind  grantOutcomeKind
	grant PermissionGrant
}

func (s *PermissionService) grantOne(ctx context.Context, principal Principal, viewerID, targetID string, now time.Time) (grantOutcome, error) {
	if targetID == viewerID {
		return grantOutcome{}, ErrSelfGrant
	}
	if _, err := s.users.GetUser(ctx, targetID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return grantOutcome{}, fmt.Errorf("target user not found")
		}
		return grantOutcome{}, err
	}

	existing, err := s.grants.FindGrant(ctx, viewerID, targetID)
	switch {
	case err == nil:
		if existing.IsActive {
			return grantOutcome{kind: grantAlreadyActive, grant: existing}, nil
		}
		// Restore in place: the revoked row is reactivated under the new
		// grantor and grant time.
		existing.GrantedByID = principal.UserID
		existing.GrantedAt = now
		existing.IsActive = true
		existing.UpdatedAt = now
		restored, updateErr := s.grants.UpdateGrant(ctx, existing)
		if updateErr != nil {
			return grantOutcome{}, updateErr
		}
		return grantOutcome{kind: grantRestored, grant: restored}, nil
	case errors.Is(err, ErrNotFound):
		grant := PermissionGrant{
			ID:          s.idGenerator(),
			ViewerID:    viewerID,
			TargetID:    targetID,
			GrantedByID: principal.UserID,
			GrantedAt:   now,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		created, createErr := s.grants.CreateGrant(ctx, grant)
		if createErr != nil {
			return grantOutcome{}, createErr
		}
		return grantOutcome{kind: grantCreated, grant: created}, nil
	default:
		return grantOutcome{}, err
	}
}

// RevokePermission deactivates a grant. Revoking an already inactive grant is
// a successful no-op so retries converge.
func (s *PermissionService) RevokePermission(ctx context.Context, principal Principal, grantID string) error {
	if s == nil {
		return fmt.Errorf("PermissionService is nil")
	}
	if s.grants == nil {
		return fmt.Errorf("permission repository not configured")
	}

	logger := s.loggerWith(ctx, "RevokePermission",
		"principal_id", principal.UserID,
		"grant_id", grantID,
	)

	if !principal.IsAdmin() {
		logger.ErrorContext(ctx, "failed to revoke permission", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
		return ErrUnauthorized
	}

	grant, err := s.grants.GetGrant(ctx, grantID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to revoke permission", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if !grant.IsActive {
		logger.InfoContext(ctx, "permission already revoked")
		return nil
	}

	grant.IsActive = false
	grant.UpdatedAt = s.now()
	if _, err := s.grants.UpdateGrant(ctx, grant); err != nil {
		logger.ErrorContext(ctx, "failed to revoke permission", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "permission revoked")
	return nil
}

// RestorePermission reactivates a revoked grant under the restoring admin's
// name and the current time.
func (s *PermissionService) RestorePermission(ctx context.Context, principal Principal, grantID string) (grant PermissionGrant, err error) {
	if s == nil {
		err = fmt.Errorf("PermissionService is nil")
		return
	}
	if s.grants == nil {
		err = fmt.Errorf("permission repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "RestorePermission",
		"principal_id", principal.UserID,
		"grant_id", grantID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to restore permission", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "permission restored")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	var existing PermissionGrant
	existing, err = s.grants.GetGrant(ctx, grantID)
	if err != nil {
		return
	}
	if existing.IsActive {
		err = ErrAlreadyExists
		return
	}

	now := s.now()
	existing.GrantedByID = principal.UserID
	existing.GrantedAt = now
	existing.IsActive = true
	existing.UpdatedAt = now

	grant, err = s.grants.UpdateGrant(ctx, existing)
	return
}

// ListGrants returns every grant for administrators.
func (s *PermissionService) ListGrants(ctx context.Context, principal Principal, activeOnly bool) ([]PermissionGrant, error) {
	if s == nil {
		return nil, fmt.Errorf("PermissionService is nil")
	}
	if s.grants == nil {
		return nil, nil
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return s.grants.ListGrants(ctx, activeOnly)
}

// ListGrantsForViewer returns the grants where the given user is the viewer.
// Admins may inspect anyone; other principals only themselves.
func (s *PermissionService) ListGrantsForViewer(ctx context.Context, principal Principal, viewerID string, activeOnly bool) ([]PermissionGrant, error) {
	if s == nil {
		return nil, fmt.Errorf("PermissionService is nil")
	}
	if s.grants == nil {
		return nil, nil
	}
	if !principal.IsAdmin() && principal.UserID != viewerID {
		return nil, ErrUnauthorized
	}
	return s.grants.ListGrantsForViewer(ctx, viewerID, activeOnly)
}

// ActiveTargetsFor resolves the set of call owners visible to a viewer right
// now. Admins see everything; everyone else sees themselves plus the targets
// of their active grants.
func (s *PermissionService) ActiveTargetsFor(ctx context.Context, viewerID string) (TargetSet, error) {
	if s == nil {
		return TargetSet{}, fmt.Errorf("PermissionService is nil")
	}
	if s.grants == nil || s.users == nil {
		return TargetSet{}, fmt.Errorf("permission repository not configured")
	}

	user, err := s.users.GetUser(ctx, viewerID)
	if err != nil {
		return TargetSet{}, err
	}
	if user.Role == RoleAdmin {
		return TargetSet{All: true}, nil
	}

	grants, err := s.grants.ListGrantsForViewer(ctx, viewerID, true)
	if err != nil {
		return TargetSet{}, err
	}

	ids := make([]string, 0, len(grants)+1)
	ids = append(ids, viewerID)
	for _, grant := range grants {
		if grant.TargetID != viewerID {
			ids = append(ids, grant.TargetID)
		}
	}
	sort.Strings(ids)

	return TargetSet{IDs: ids}, nil
}
