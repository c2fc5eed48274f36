package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/interview-tracker/internal/lifecycle"
)

// CallListFilter narrows call listings.
type CallListFilter struct {
	// OwnerIDs restricts results to the listed owners. Nil means every owner.
	OwnerIDs []string
	// Statuses restricts results to the listed statuses. Nil means all.
	Statuses []lifecycle.Status
}

// CallRepository captures the persistence operations needed by the call service.
type CallRepository interface {
	CreateCall(ctx context.Context, call Call) (Call, error)
	GetCall(ctx context.Context, id string) (Call, error)
	UpdateCall(ctx context.Context, call Call) (Call, error)
	UpdateCallStatus(ctx context.Context, id string, status lifecycle.Status, scheduledAt time.Time, notes string, updatedAt time.Time) (Call, error)
	// ListCalls returns matching calls ordered ascending by scheduled time.
	ListCalls(ctx context.Context, filter CallListFilter) ([]Call, error)
	DeleteCall(ctx context.Context, id string) error
}

// VisibilityResolver answers whose calls a viewer may currently see.
type VisibilityResolver interface {
	ActiveTargetsFor(ctx context.Context, viewerID string) (TargetSet, error)
}

// CallService orchestrates call CRUD, visibility filtering, and lifecycle
// transitions. Observers are notified after a transition has been persisted.
type CallService struct {
	calls       CallRepository
	visibility  VisibilityResolver
	observer    CallObserver
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCallService constructs a call service with the provided dependencies.
func NewCallService(calls CallRepository, visibility VisibilityResolver, idGenerator func() string, now func() time.Time) *CallService {
	return NewCallServiceWithLogger(calls, visibility, idGenerator, now, nil)
}

// NewCallServiceWithLogger constructs a call service with a specified logger.
func NewCallServiceWithLogger(calls CallRepository, visibility VisibilityResolver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CallService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CallService{
		calls:       calls,
		visibility:  visibility,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// SetObserver registers the observer receiving lifecycle events. Must be
// called during wiring, before the service handles requests.
func (s *CallService) SetObserver(observer CallObserver) {
	if s != nil {
		s.observer = observer
	}
}

func (s *CallService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CallService", operation, attrs...)
}

func (s *CallService) notify(eventType CallEventType, call Call, occurredAt time.Time) {
	if s.observer == nil {
		return
	}
	s.observer.NotifyCallEvent(CallEvent{Type: eventType, Call: call, OccurredAt: occurredAt})
}

// CreateCall validates input and persists a new scheduled call owned by the
// principal.
func (s *CallService) CreateCall(ctx context.Context, params CreateCallParams) (call Call, err error) {
	if s == nil {
		err = fmt.Errorf("CallService is nil")
		return
	}
	if s.calls == nil {
		err = fmt.Errorf("call repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateCall",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create call", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("call_id", call.ID).InfoContext(ctx, "call created")
	}()

	normalized := normalizeCallInput(params.Input)
	vErr := validateCallInput(normalized)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	call = Call{
		ID:              s.idGenerator(),
		OwnerID:         params.Principal.UserID,
		Contact:         normalized.Contact,
		Subject:         normalized.Subject,
		ScheduledAt:     normalized.ScheduledAt,
		DurationMinutes: normalized.DurationMinutes,
		Status:          lifecycle.StatusScheduled,
		Priority:        normalized.Priority,
		Notes:           normalized.Notes,
		CreatedAt:       s.now(),
	}
	call.UpdatedAt = call.CreatedAt

	var persisted Call
	persisted, err = s.calls.CreateCall(ctx, call)
	if err != nil {
		call = Call{}
		return
	}

	call = persisted
	return
}

// UpdateCall rewrites a call's metadata. The scheduled time and status only
// move through lifecycle transitions.
func (s *CallService) UpdateCall(ctx context.Context, params UpdateCallParams) (call Call, err error) {
	if s == nil {
		err = fmt.Errorf("CallService is nil")
		return
	}
	if s.calls == nil {
		err = fmt.Errorf("call repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateCall",
		"principal_id", params.Principal.UserID,
		"call_id", params.CallID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update call", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "call updated")
	}()

	var existing Call
	existing, err = s.calls.GetCall(ctx, params.CallID)
	if err != nil {
		return
	}

	if err = s.authorize(ctx, params.Principal, existing.OwnerID); err != nil {
		return
	}

	normalized := normalizeCallInput(params.Input)
	normalized.ScheduledAt = existing.ScheduledAt
	vErr := validateCallInput(normalized)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Contact = normalized.Contact
	updated.Subject = normalized.Subject
	updated.DurationMinutes = normalized.DurationMinutes
	updated.Priority = normalized.Priority
	updated.Notes = normalized.Notes
	updated.UpdatedAt = s.now()

	call, err = s.calls.UpdateCall(ctx, updated)
	return
}

// GetCall returns a single call when the principal may see its owner's
// schedule.
func (s *CallService) GetCall(ctx context.Context, principal Principal, callID string) (Call, error) {
	if s == nil {
		return Call{}, fmt.Errorf("CallService is nil")
	}
	if s.calls == nil {
		return Call{}, fmt.Errorf("call repository not configured")
	}

	call, err := s.calls.GetCall(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	if err := s.authorize(ctx, principal, call.OwnerID); err != nil {
		return Call{}, err
	}
	return call, nil
}

// VisibleCalls returns every call the principal may see, ordered ascending by
// scheduled time. A viewer with no grants still sees their own calls.
func (s *CallService) VisibleCalls(ctx context.Context, params VisibleCallsParams) (calls []Call, err error) {
	if s == nil {
		err = fmt.Errorf("CallService is nil")
		return
	}
	if s.calls == nil || s.visibility == nil {
		err = fmt.Errorf("call repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "VisibleCalls",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list visible calls", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(calls)).InfoContext(ctx, "visible calls listed")
	}()

	var targets TargetSet
	targets, err = s.visibility.ActiveTargetsFor(ctx, params.Principal.UserID)
	if err != nil {
		return
	}

	filter := CallListFilter{Statuses: params.Statuses}
	if !targets.All {
		filter.OwnerIDs = targets.IDs
	}

	calls, err = s.calls.ListCalls(ctx, filter)
	return
}

// StartCall moves a scheduled call to in progress.
func (s *CallService) StartCall(ctx context.Context, principal Principal, callID string) (Call, error) {
	return s.transition(ctx, principal, "StartCall", callID, lifecycle.StatusInProgress, nil, "", CallEventStarted)
}

// CompleteCall moves an in-progress call to completed.
func (s *CallService) CompleteCall(ctx context.Context, principal Principal, callID, notes string) (Call, error) {
	return s.transition(ctx, principal, "CompleteCall", callID, lifecycle.StatusCompleted, nil, notes, CallEventCompleted)
}

// FailCall moves an in-progress call to failed.
func (s *CallService) FailCall(ctx context.Context, principal Principal, callID, notes string) (Call, error) {
	return s.transition(ctx, principal, "FailCall", callID, lifecycle.StatusFailed, nil, notes, CallEventFailed)
}

// CancelCall moves a scheduled call to cancelled.
func (s *CallService) CancelCall(ctx context.Context, principal Principal, callID, notes string) (Call, error) {
	return s.transition(ctx, principal, "CancelCall", callID, lifecycle.StatusCancelled, nil, notes, CallEventCancelled)
}

// RescheduleCall moves a scheduled call to a new time. The call passes
// through the rescheduled state and lands back in scheduled, so reminders
// arm again against the new time.
func (s *CallService) RescheduleCall(ctx context.Context, params RescheduleCallParams) (Call, error) {
	if params.NewTime.IsZero() {
		vErr := &ValidationError{}
		vErr.add("scheduled_at", "new scheduled time is required")
		return Call{}, vErr
	}
	return s.transition(ctx, params.Principal, "RescheduleCall", params.CallID, lifecycle.StatusRescheduled, &params.NewTime, params.Notes, CallEventRescheduled)
}

// DeleteCall removes a call for its owner or an administrator.
func (s *CallService) DeleteCall(ctx context.Context, principal Principal, callID string) error {
	if s == nil {
		return fmt.Errorf("CallService is nil")
	}
	if s.calls == nil {
		return fmt.Errorf("call repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteCall",
		"principal_id", principal.UserID,
		"call_id", callID,
	)

	call, err := s.calls.GetCall(ctx, callID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete call", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if !principal.IsAdmin() && principal.UserID != call.OwnerID {
		logger.ErrorContext(ctx, "failed to delete call", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
		return ErrUnauthorized
	}

	if err := s.calls.DeleteCall(ctx, callID); err != nil {
		logger.ErrorContext(ctx, "failed to delete call", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.notify(CallEventDeleted, call, s.now())
	logger.InfoContext(ctx, "call deleted")
	return nil
}

func (s *CallService) transition(ctx context.Context, principal Principal, operation, callID string, target lifecycle.Status, newTime *time.Time, notes string, eventType CallEventType) (call Call, err error) {
	if s == nil {
		err = fmt.Errorf("CallService is nil")
		return
	}
	if s.calls == nil {
		err = fmt.Errorf("call repository not configured")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", principal.UserID,
		"call_id", callID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "call transition failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", string(call.Status)).InfoContext(ctx, "call transitioned")
	}()

	var existing Call
	existing, err = s.calls.GetCall(ctx, callID)
	if err != nil {
		return
	}

	if err = s.authorize(ctx, principal, existing.OwnerID); err != nil {
		return
	}

	next, transitionErr := lifecycle.Transition(existing.Status, target)
	if transitionErr != nil {
		err = transitionErr
		return
	}
	// Rescheduled is transient: the persisted state re-arms as scheduled
	// against the new time.
	if next == lifecycle.StatusRescheduled {
		next = lifecycle.StatusScheduled
	}

	scheduledAt := existing.ScheduledAt
	if newTime != nil {
		scheduledAt = newTime.UTC()
	}
	persistedNotes := existing.Notes
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		persistedNotes = trimmed
	}

	now := s.now()
	call, err = s.calls.UpdateCallStatus(ctx, callID, next, scheduledAt, persistedNotes, now)
	if err != nil {
		call = Call{}
		return
	}

	s.notify(eventType, call, now)
	return
}

// authorize permits the owner, administrators, and viewers holding an active
// grant over the owner.
func (s *CallService) authorize(ctx context.Context, principal Principal, ownerID string) error {
	if principal.IsAdmin() || principal.UserID == ownerID {
		return nil
	}
	if s.visibility == nil {
		return ErrUnauthorized
	}
	targets, err := s.visibility.ActiveTargetsFor(ctx, principal.UserID)
	if err != nil {
		return err
	}
	if !targets.Contains(ownerID) {
		return ErrUnauthorized
	}
	return nil
}

func normalizeCallInput(input CallInput) CallInput {
	normalized := CallInput{
		Contact:         strings.TrimSpace(input.Contact),
		Subject:         strings.TrimSpace(input.Subject),
		ScheduledAt:     input.ScheduledAt,
		DurationMinutes: input.DurationMinutes,
		Priority:        input.Priority,
		Notes:           strings.TrimSpace(input.Notes),
	}
	if !normalized.ScheduledAt.IsZero() {
		normalized.ScheduledAt = normalized.ScheduledAt.UTC()
	}
	return normalized
}

func validateCallInput(input CallInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Contact == "" {
		vErr.add("contact", "contact is required")
	}
	if input.Subject == "" {
		vErr.add("subject", "subject is required")
	}
	if input.ScheduledAt.IsZero() {
		vErr.add("scheduled_at", "scheduled time is required")
	}
	if input.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "duration must be positive")
	}

	return vErr
}
