package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/interview-tracker/internal/application"
)

type permissionService interface {
	GrantPermissions(ctx context.Context, params application.GrantPermissionsParams) (application.GrantResult, error)
	RevokePermission(ctx context.Context, principal application.Principal, grantID string) error
	RestorePermission(ctx context.Context, principal application.Principal, grantID string) (application.PermissionGrant, error)
	ListGrants(ctx context.Context, principal application.Principal, activeOnly bool) ([]application.PermissionGrant, error)
	ListGrantsForViewer(ctx context.Context, principal application.Principal, viewerID string, activeOnly bool) ([]application.PermissionGrant, error)
}

type PermissionHandler struct {
	service   permissionService
	responder responder
	logger    *slog.Logger
}

func NewPermissionHandler(service permissionService, logger *slog.Logger) *PermissionHandler {
	base := defaultLogger(logger)
	return &PermissionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PermissionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PermissionHandler", operation, attrs...)
}

// List returns grants. Without a viewer_id query parameter every grant is
// listed; active=true limits the output to active grants.
func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	query := r.URL.Query()
	viewerID := query.Get("viewer_id")
	activeOnly := query.Get("active") == "true"

	var grants []application.PermissionGrant
	var err error
	if viewerID != "" {
		grants, err = h.service.ListGrantsForViewer(r.Context(), principal, viewerID, activeOnly)
	} else {
		grants, err = h.service.ListGrants(r.Context(), principal, activeOnly)
	}
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list grants", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]grantResponse, 0, len(grants))
	for _, grant := range grants {
		payload = append(payload, newGrantResponse(grant))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// Grant applies a batch grant request. The response always reports the full
// partition of outcomes, so a request with some rejected targets still
// succeeds with the accepted ones applied.
func (h *PermissionHandler) Grant(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Grant", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode grant request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Grant",
		"principal_id", principal.UserID,
		"viewer_id", req.ViewerID,
		"target_count", len(req.TargetIDs),
	)

	result, err := h.service.GrantPermissions(r.Context(), application.GrantPermissionsParams{
		Principal: principal,
		ViewerID:  req.ViewerID,
		TargetIDs: req.TargetIDs,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to grant permissions", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With(
		"created", len(result.Created),
		"restored", len(result.Restored),
		"already_active", len(result.AlreadyActive),
		"failed", len(result.Failed),
	).InfoContext(r.Context(), "permissions granted")

	h.responder.writeJSON(r.Context(), w, http.StatusOK, newGrantResultResponse(result))
}

func (h *PermissionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	grantID, ok := GrantIDFromContext(r.Context())
	if !ok || grantID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGrantID)
		return
	}

	logger := h.log(r.Context(), "Revoke", "principal_id", principal.UserID, "grant_id", grantID)

	if err := h.service.RevokePermission(r.Context(), principal, grantID); err != nil {
		logger.ErrorContext(r.Context(), "failed to revoke grant", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "grant revoked")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *PermissionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	grantID, ok := GrantIDFromContext(r.Context())
	if !ok || grantID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGrantID)
		return
	}

	logger := h.log(r.Context(), "Restore", "principal_id", principal.UserID, "grant_id", grantID)

	grant, err := h.service.RestorePermission(r.Context(), principal, grantID)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to restore grant", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "grant restored")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newGrantResponse(grant))
}

type grantRequest struct {
	ViewerID  string   `json:"viewer_id"`
	TargetIDs []string `json:"target_ids"`
}

type grantResponse struct {
	ID          string `json:"id"`
	ViewerID    string `json:"viewer_id"`
	TargetID    string `json:"target_id"`
	GrantedByID string `json:"granted_by_id"`
	GrantedAt   string `json:"granted_at"`
	IsActive    bool   `json:"is_active"`
}

func newGrantResponse(grant application.PermissionGrant) grantResponse {
	return grantResponse{
		ID:          grant.ID,
		ViewerID:    grant.ViewerID,
		TargetID:    grant.TargetID,
		GrantedByID: grant.GrantedByID,
		GrantedAt:   grant.GrantedAt.UTC().Format(time.RFC3339Nano),
		IsActive:    grant.IsActive,
	}
}

type grantFailureResponse struct {
	TargetID string `json:"target_id"`
	Reason   string `json:"reason"`
}

type grantResultResponse struct {
	Created       []grantResponse        `json:"created"`
	Restored      []grantResponse        `json:"restored"`
	AlreadyActive []grantResponse        `json:"already_active"`
	Failed        []grantFailureResponse `json:"failed"`
}

func newGrantResultResponse(result application.GrantResult) grantResultResponse {
	out := grantResultResponse{
		Created:       make([]grantResponse, 0, len(result.Created)),
		Restored:      make([]grantResponse, 0, len(result.Restored)),
		AlreadyActive: make([]grantResponse, 0, len(result.AlreadyActive)),
		Failed:        make([]grantFailureResponse, 0, len(result.Failed)),
	}
	for _, grant := range result.Created {
		out.Created = append(out.Created, newGrantResponse(grant))
	}
	for _, grant := range result.Restored {
		out.Restored = append(out.Restored, newGrantResponse(grant))
	}
	for _, grant := range result.AlreadyActive {
		out.AlreadyActive = append(out.AlreadyActive, newGrantResponse(grant))
	}
	for _, failure := range result.Failed {
		out.Failed = append(out.Failed, grantFailureResponse{TargetID: failure.TargetID, Reason: failure.Reason})
	}
	return out
}
