package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/interview-tracker/internal/application"
	"github.com/example/interview-tracker/internal/lifecycle"
)

type callService interface {
	CreateCall(ctx context.Context, params application.CreateCallParams) (application.Call, error)
	UpdateCall(ctx context.Context, params application.UpdateCallParams) (application.Call, error)
	GetCall(ctx context.Context, principal application.Principal, callID string) (application.Call, error)
	VisibleCalls(ctx context.Context, params application.VisibleCallsParams) ([]application.Call, error)
	StartCall(ctx context.Context, principal application.Principal, callID string) (application.Call, error)
	CompleteCall(ctx context.Context, principal application.Principal, callID, notes string) (application.Call, error)
	FailCall(ctx context.Context, principal application.Principal, callID, notes string) (application.Call, error)
	CancelCall(ctx context.Context, principal application.Principal, callID, notes string) (application.Call, error)
	RescheduleCall(ctx context.Context, params application.RescheduleCallParams) (application.Call, error)
	DeleteCall(ctx context.Context, principal application.Principal, callID string) error
}

// reminderControl forwards viewer reminder actions into the viewer's
// notification scheduler.
type reminderControl interface {
	Snooze(viewerID, callID string, delay time.Duration) bool
	DismissCall(viewerID, callID string)
}

type CallHandler struct {
	service   callService
	reminders reminderControl
	responder responder
	logger    *slog.Logger
}

func NewCallHandler(service callService, reminders reminderControl, logger *slog.Logger) *CallHandler {
	base := defaultLogger(logger)
	return &CallHandler{service: service, reminders: reminders, responder: newResponder(base), logger: base}
}

func (h *CallHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CallHandler", operation, attrs...)
}

func (h *CallHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	statuses, err := parseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	calls, err := h.service.VisibleCalls(r.Context(), application.VisibleCallsParams{
		Principal: principal,
		Statuses:  statuses,
	})
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list calls", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]callResponse, 0, len(calls))
	for _, call := range calls {
		payload = append(payload, newCallResponse(call))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

func (h *CallHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode call request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	call, err := h.service.CreateCall(r.Context(), application.CreateCallParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create call", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("call_id", call.ID).InfoContext(r.Context(), "call created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newCallResponse(call))
}

func (h *CallHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, callID, ok := h.requireCall(w, r)
	if !ok {
		return
	}

	call, err := h.service.GetCall(r.Context(), principal, callID)
	if err != nil {
		h.log(r.Context(), "Get", "call_id", callID).ErrorContext(r.Context(), "failed to get call", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, newCallResponse(call))
}

func (h *CallHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, callID, ok := h.requireCall(w, r)
	if !ok {
		return
	}

	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode call request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "call_id", callID)

	call, err := h.service.UpdateCall(r.Context(), application.UpdateCallParams{
		Principal: principal,
		CallID:    callID,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to update call", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "call updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newCallResponse(call))
}

func (h *CallHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, callID, ok := h.requireCall(w, r)
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "call_id", callID)

	if err := h.service.DeleteCall(r.Context(), principal, callID); err != nil {
		logger.ErrorContext(r.Context(), "failed to delete call", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "call deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Action dispatches the lifecycle and reminder verbs nested under a call.
func (h *CallHandler) Action(w http.ResponseWriter, r *http.Request, action string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, callID, ok := h.requireCall(w, r)
	if !ok {
		return
	}

	var req callActionRequest
	if r.Body != nil {
		// Transition bodies are optional; decode failures on an empty body
		// are ignored.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	logger := h.log(r.Context(), "Action",
		"principal_id", principal.UserID,
		"call_id", callID,
		"action", action,
	)

	var call application.Call
	var err error
	switch action {
	case "start":
		call, err = h.service.StartCall(r.Context(), principal, callID)
	case "complete":
		call, err = h.service.CompleteCall(r.Context(), principal, callID, req.Notes)
	case "fail":
		call, err = h.service.FailCall(r.Context(), principal, callID, req.Notes)
	case "cancel":
		call, err = h.service.CancelCall(r.Context(), principal, callID, req.Notes)
	case "reschedule":
		var newTime time.Time
		newTime, err = parseRequestTime(req.ScheduledAt)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		call, err = h.service.RescheduleCall(r.Context(), application.RescheduleCallParams{
			Principal: principal,
			CallID:    callID,
			NewTime:   newTime,
			Notes:     req.Notes,
		})
	case "snooze":
		h.snooze(w, r, principal, callID, req.SnoozeMinutes)
		return
	case "dismiss":
		h.dismiss(w, r, principal, callID)
		return
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		logger.ErrorContext(r.Context(), "call action failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", string(call.Status)).InfoContext(r.Context(), "call action applied")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newCallResponse(call))
}

func (h *CallHandler) snooze(w http.ResponseWriter, r *http.Request, principal application.Principal, callID string, minutes int) {
	logger := h.log(r.Context(), "Snooze", "principal_id", principal.UserID, "call_id", callID)

	if h.reminders == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errors.New("reminder scheduling is not available"))
		return
	}
	if minutes <= 0 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("snooze minutes must be positive"))
		return
	}

	// The call must be visible to the principal before a reminder can be
	// requested for it.
	if _, err := h.service.GetCall(r.Context(), principal, callID); err != nil {
		logger.ErrorContext(r.Context(), "failed to snooze call", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if !h.reminders.Snooze(principal.UserID, callID, time.Duration(minutes)*time.Minute) {
		h.responder.writeJSON(r.Context(), w, http.StatusConflict, errorResponse{Message: "no active reminder session for this user"})
		return
	}

	logger.With("snooze_minutes", minutes).InfoContext(r.Context(), "reminder snoozed")
	h.responder.writeJSON(r.Context(), w, http.StatusAccepted, nil)
}

func (h *CallHandler) dismiss(w http.ResponseWriter, r *http.Request, principal application.Principal, callID string) {
	logger := h.log(r.Context(), "Dismiss", "principal_id", principal.UserID, "call_id", callID)

	if h.reminders == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errors.New("reminder scheduling is not available"))
		return
	}

	h.reminders.DismissCall(principal.UserID, callID)
	logger.InfoContext(r.Context(), "reminders dismissed")
	h.responder.writeJSON(r.Context(), w, http.StatusAccepted, nil)
}

func (h *CallHandler) requireCall(w http.ResponseWriter, r *http.Request) (application.Principal, string, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return application.Principal{}, "", false
	}

	callID, ok := CallIDFromContext(r.Context())
	if !ok || callID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCallID)
		return application.Principal{}, "", false
	}

	return principal, callID, true
}

func parseStatusFilter(raw string) ([]lifecycle.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]lifecycle.Status, 0, len(parts))
	for _, part := range parts {
		status := lifecycle.Status(strings.TrimSpace(part))
		if !lifecycle.Valid(status) {
			return nil, errors.New("unknown call status: " + string(status))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseRequestTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, errors.New("scheduled_at is required")
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, errors.New("scheduled_at must be an RFC 3339 timestamp")
	}
	return parsed, nil
}

type callRequest struct {
	Contact         string `json:"contact"`
	Subject         string `json:"subject"`
	ScheduledAt     string `json:"scheduled_at"`
	DurationMinutes int    `json:"duration_minutes"`
	Priority        int    `json:"priority"`
	Notes           string `json:"notes"`
}

func (r callRequest) toInput() (application.CallInput, error) {
	input := application.CallInput{
		Contact:         r.Contact,
		Subject:         r.Subject,
		DurationMinutes: r.DurationMinutes,
		Priority:        r.Priority,
		Notes:           r.Notes,
	}
	if strings.TrimSpace(r.ScheduledAt) != "" {
		scheduledAt, err := parseRequestTime(r.ScheduledAt)
		if err != nil {
			return application.CallInput{}, err
		}
		input.ScheduledAt = scheduledAt
	}
	return input, nil
}

type callActionRequest struct {
	Notes         string `json:"notes"`
	ScheduledAt   string `json:"scheduled_at"`
	SnoozeMinutes int    `json:"snooze_minutes"`
}

type callResponse struct {
	ID              string `json:"id"`
	OwnerID         string `json:"owner_id"`
	Contact         string `json:"contact"`
	Subject         string `json:"subject"`
	ScheduledAt     string `json:"scheduled_at"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	Priority        int    `json:"priority"`
	Notes           string `json:"notes"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func newCallResponse(call application.Call) callResponse {
	return callResponse{
		ID:              call.ID,
		OwnerID:         call.OwnerID,
		Contact:         call.Contact,
		Subject:         call.Subject,
		ScheduledAt:     call.ScheduledAt.UTC().Format(time.RFC3339Nano),
		DurationMinutes: call.DurationMinutes,
		Status:          string(call.Status),
		Priority:        call.Priority,
		Notes:           call.Notes,
		CreatedAt:       call.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       call.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
