package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/interview-tracker/internal/notify"
)

// notificationCenter exposes the per-viewer inbox operations the handler needs.
type notificationCenter interface {
	Notifications(viewerID string) []notify.Notification
	DismissNotification(viewerID, notificationID string) bool
}

type NotificationHandler struct {
	center    notificationCenter
	responder responder
	logger    *slog.Logger
}

func NewNotificationHandler(center notificationCenter, logger *slog.Logger) *NotificationHandler {
	base := defaultLogger(logger)
	return &NotificationHandler{center: center, responder: newResponder(base), logger: base}
}

func (h *NotificationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "NotificationHandler", operation, attrs...)
}

// List returns the principal's pending notifications, oldest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.center == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	notifications := h.center.Notifications(principal.UserID)
	payload := make([]notificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		payload = append(payload, newNotificationResponse(notification))
	}

	h.log(r.Context(), "List", "principal_id", principal.UserID).
		With("result_count", len(payload)).InfoContext(r.Context(), "notifications listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// Dismiss removes one notification from the principal's inbox.
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request, notificationID string) {
	if h == nil || h.center == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	logger := h.log(r.Context(), "Dismiss",
		"principal_id", principal.UserID,
		"notification_id", notificationID,
	)

	if !h.center.DismissNotification(principal.UserID, notificationID) {
		logger.ErrorContext(r.Context(), "notification not found", "error_kind", "not_found")
		h.responder.writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Message: "the requested resource was not found"})
		return
	}

	logger.InfoContext(r.Context(), "notification dismissed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type notificationResponse struct {
	ID            string       `json:"id"`
	CallID        string       `json:"call_id"`
	Kind          string       `json:"kind"`
	OffsetMinutes int          `json:"offset_minutes"`
	FiredAt       string       `json:"fired_at"`
	Call          callResponse `json:"call"`
}

func newNotificationResponse(notification notify.Notification) notificationResponse {
	return notificationResponse{
		ID:            notification.ID,
		CallID:        notification.CallID,
		Kind:          string(notification.Kind),
		OffsetMinutes: notification.OffsetMinutes,
		FiredAt:       notification.FiredAt.UTC().Format(time.RFC3339Nano),
		Call:          newCallResponse(notification.Call),
	}
}
