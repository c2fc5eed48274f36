package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/interview-tracker/internal/application"
	"github.com/example/interview-tracker/internal/lifecycle"
	"github.com/example/interview-tracker/internal/notify"
	"github.com/example/interview-tracker/internal/testfixtures"
)

type authServiceStub struct {
	authenticate func(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	refresh      func(ctx context.Context, token, fingerprint string) (application.Session, error)
	revoke       func(ctx context.Context, token string) error
}

func (s *authServiceStub) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	return s.authenticate(ctx, params)
}

func (s *authServiceStub) RefreshSession(ctx context.Context, token, fingerprint string) (application.Session, error) {
	return s.refresh(ctx, token, fingerprint)
}

func (s *authServiceStub) RevokeSession(ctx context.Context, token string) error {
	return s.revoke(ctx, token)
}

type userServiceStub struct {
	create func(ctx context.Context, params application.CreateUserParams) (application.User, error)
	update func(ctx context.Context, params application.UpdateUserParams) (application.User, error)
	delete func(ctx context.Context, principal application.Principal, userID string) error
	get    func(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	list   func(ctx context.Context, principal application.Principal) ([]application.User, error)
}

func (s *userServiceStub) CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error) {
	return s.create(ctx, params)
}

func (s *userServiceStub) UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error) {
	return s.update(ctx, params)
}

func (s *userServiceStub) DeleteUser(ctx context.Context, principal application.Principal, userID string) error {
	return s.delete(ctx, principal, userID)
}

func (s *userServiceStub) GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error) {
	return s.get(ctx, principal, userID)
}

func (s *userServiceStub) ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error) {
	return s.list(ctx, principal)
}

type permissionServiceStub struct {
	grant         func(ctx context.Context, params application.GrantPermissionsParams) (application.GrantResult, error)
	revoke        func(ctx context.Context, principal application.Principal, grantID string) error
	restore       func(ctx context.Context, principal application.Principal, grantID string) (application.PermissionGrant, error)
	list          func(ctx context.Context, principal application.Principal, activeOnly bool) ([]application.PermissionGrant, error)
	listForViewer func(ctx context.Context, principal application.Principal, viewerID string, activeOnly bool) ([]application.PermissionGrant, error)
}

func (s *permissionServiceStub) GrantPermissions(ctx context.Context, params application.GrantPermissionsParams) (application.GrantResult, error) {
	return s.grant(ctx, params)
}

func (s *permissionServiceStub) RevokePermission(ctx context.Context, principal application.Principal, grantID string) error {
	return s.revoke(ctx, principal, grantID)
}

func (s *permissionServiceStub) RestorePermission(ctx context.Context, principal application.Principal, grantID string) (application.PermissionGrant, error) {
	return s.restore(ctx, principal, grantID)
}

func (s *permissionServiceStub) ListGrants(ctx context.Context, principal application.Principal, activeOnly bool) ([]application.PermissionGrant, error) {
	return s.list(ctx, principal, activeOnly)
}

func (s *permissionServiceStub) ListGrantsForViewer(ctx context.Context, principal application.Principal, viewerID string, activeOnly bool) ([]application.PermissionGrant, error) {
	return s.listForViewer(ctx, principal, viewerID, activeOnly)
}

type callServiceStub struct {
	create     func(ctx context.Context, params application.CreateCallParams) (application.Call, error)
	update     func(ctx context.Context, params application.UpdateCallParams) (application.Call, error)
	get        func(ctx context.Context, principal application.Principal, callID string) (application.Call, error)
	visible    func(ctx context.Context, params application.VisibleCallsParams) ([]application.Call, error)
	start      func(ctx context.Context, principal application.Principal, callID string) (application.Call, error)
	complete   func(ctx context.Context, principal application.Principal, callID, notes string) (application.Call, error)
	fail       func(ctx context.Context, principal application.Principal, callID, notes string) (application.Call, error)
	cancel     func(ctx context.Context, principal application.Principal, callID, notes string) (application.Call, error)
	reschedule func(ctx context.Context, params application.RescheduleCallParams) (application.Call, error)
	delete     func(ctx context.Context, principal application.Principal, callID string) error
}

func (s *callServiceStub) CreateCall(ctx context.Context, params application.CreateCallParams) (application.Call, error) {
	return s.create(ctx, params)
}

func (s *callServiceStub) UpdateCall(ctx context.Context, params application.UpdateCallParams) (application.Call, error) {
	return s.update(ctx, params)
}

func (s *callServiceStub) GetCall(ctx context.Context, principal application.Principal, callID string) (application.Call, error) {
	return s.get(ctx, principal, callID)
}

func (s *callServiceStub) VisibleCalls(ctx context.Context, params application.VisibleCallsParams) ([]application.Call, error) {
	return s.visible(ctx, params)
}

func (s *callServiceStub) StartCall(ctx context.Context, principal application.Principal, callID string) (application.Call, error) {
	return s.start(ctx, principal, callID)
}

func (s *callServiceStub) CompleteCall(ctx context.Context, principal application.Principal, callID, notes string) (application.Call, error) {
	return s.complete(ctx, principal, callID, notes)
}

func (s *callServiceStub) FailCall(ctx context.Context, principal application.Principal, callID, notes string) (application.Call, error) {
	return s.fail(ctx, principal, callID, notes)
}

func (s *callServiceStub) CancelCall(ctx context.Context, principal application.Principal, callID, notes string) (application.Call, error) {
	return s.cancel(ctx, principal, callID, notes)
}

func (s *callServiceStub) RescheduleCall(ctx context.Context, params application.RescheduleCallParams) (application.Call, error) {
	return s.reschedule(ctx, params)
}

func (s *callServiceStub) DeleteCall(ctx context.Context, principal application.Principal, callID string) error {
	return s.delete(ctx, principal, callID)
}

type snoozerStub struct {
	result    bool
	viewerID  string
	callID    string
	delay     time.Duration
	dismissed []string
}

func (s *snoozerStub) Snooze(viewerID, callID string, delay time.Duration) bool {
	s.viewerID = viewerID
	s.callID = callID
	s.delay = delay
	return s.result
}

func (s *snoozerStub) DismissCall(viewerID, callID string) {
	s.dismissed = append(s.dismissed, viewerID+"/"+callID)
}

type notificationCenterStub struct {
	notifications []notify.Notification
	dismissed     string
	dismissResult bool
}

func (s *notificationCenterStub) Notifications(viewerID string) []notify.Notification {
	return s.notifications
}

func (s *notificationCenterStub) DismissNotification(viewerID, notificationID string) bool {
	s.dismissed = notificationID
	return s.dismissResult
}

// withPrincipal builds middleware that injects a fixed principal the way
// RequireSession would after validating a token.
func withPrincipal(principal application.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func serve(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

var testTime = time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)

func TestAuthHandlers(t *testing.T) {
	t.Run("login issues the session token via header, cookie, and body", func(t *testing.T) {
		service := &authServiceStub{
			authenticate: func(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
				if params.Email != "alice@example.com" {
					t.Fatalf("expected lowercased email, got %q", params.Email)
				}
				return application.AuthenticateResult{
					User:    application.User{ID: "u-1", Role: application.RoleStandard},
					Session: application.Session{ID: "s-1", UserID: "u-1", Token: "tok-1", ExpiresAt: testTime.Add(time.Hour)},
				}, nil
			},
		}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		rec := serve(t, router, http.MethodPost, "/sessions", loginRequest{Email: " Alice@Example.COM ", Password: "secret123"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Session-Token") != "tok-1" {
			t.Fatalf("expected session token header, got %q", rec.Header().Get("X-Session-Token"))
		}
		cookieFound := false
		for _, cookie := range rec.Result().Cookies() {
			if cookie.Name == "session_token" && cookie.Value == "tok-1" {
				cookieFound = true
			}
		}
		if !cookieFound {
			t.Fatal("expected session cookie to be set")
		}

		var payload loginResponse
		if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode login response: %v", err)
		}
		if payload.Token != "tok-1" || payload.UserID != "u-1" || payload.Role != "standard" {
			t.Fatalf("unexpected login payload: %#v", payload)
		}
	})

	t.Run("bad credentials map to 401 AUTH_INVALID_CREDENTIALS", func(t *testing.T) {
		service := &authServiceStub{
			authenticate: func(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
				return application.AuthenticateResult{}, application.ErrInvalidCredentials
			},
		}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		rec := serve(t, router, http.MethodPost, "/sessions", loginRequest{Email: "alice@example.com", Password: "nope"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if payload := decodeErrorResponse(t, rec); payload.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("unexpected payload: %#v", payload)
		}
	})

	t.Run("admin revocation of arbitrary tokens requires the admin role", func(t *testing.T) {
		revoked := ""
		service := &authServiceStub{
			revoke: func(ctx context.Context, token string) error {
				revoked = token
				return nil
			},
		}
		handler := NewAuthHandler(service, nil)

		standard := NewRouter(RouterConfig{
			Auth:       handler,
			Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "u-1", Role: application.RoleStandard})},
		})
		rec := serve(t, standard, http.MethodDelete, "/sessions/some-token", nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
		}

		admin := NewRouter(RouterConfig{
			Auth:       handler,
			Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "admin-1", Role: application.RoleAdmin})},
		})
		rec = serve(t, admin, http.MethodDelete, "/sessions/some-token", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204 for admin, got %d", rec.Code)
		}
		if revoked != "some-token" {
			t.Fatalf("expected token to reach the service, got %q", revoked)
		}
	})

	t.Run("current session revocation clears the cookie", func(t *testing.T) {
		service := &authServiceStub{
			revoke: func(ctx context.Context, token string) error { return nil },
		}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		req := httptest.NewRequest(http.MethodDelete, "/sessions/current", nil)
		req.Header.Set("Authorization", "Bearer tok-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		cleared := false
		for _, cookie := range rec.Result().Cookies() {
			if cookie.Name == "session_token" && cookie.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Fatal("expected the session cookie to be cleared")
		}
	})
}

func TestUserHandlers(t *testing.T) {
	t.Run("service authorization errors map to 403", func(t *testing.T) {
		service := &userServiceStub{
			create: func(ctx context.Context, params application.CreateUserParams) (application.User, error) {
				return application.User{}, application.ErrUnauthorized
			},
		}
		router := NewRouter(RouterConfig{
			Users:      NewUserHandler(service, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "u-1", Role: application.RoleStandard})},
		})

		rec := serve(t, router, http.MethodPost, "/users", userRequest{Email: "x@example.com", DisplayName: "X", Password: "secret123", Role: "standard"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if payload := decodeErrorResponse(t, rec); payload.ErrorCode != "AUTH_FORBIDDEN" {
			t.Fatalf("unexpected payload: %#v", payload)
		}
	})

	t.Run("validation errors map to 422 with field details", func(t *testing.T) {
		service := &userServiceStub{
			create: func(ctx context.Context, params application.CreateUserParams) (application.User, error) {
				return application.User{}, &application.ValidationError{FieldErrors: map[string]string{"email": "email is invalid"}}
			},
		}
		router := NewRouter(RouterConfig{
			Users:      NewUserHandler(service, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "admin-1", Role: application.RoleAdmin})},
		})

		rec := serve(t, router, http.MethodPost, "/users", userRequest{Email: "broken", DisplayName: "X", Password: "secret123", Role: "standard"})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		payload := decodeErrorResponse(t, rec)
		if payload.Errors["email"] != "email is invalid" {
			t.Fatalf("expected field errors in payload, got %#v", payload)
		}
	})

	t.Run("created users are returned without credentials", func(t *testing.T) {
		service := &userServiceStub{
			create: func(ctx context.Context, params application.CreateUserParams) (application.User, error) {
				return testfixtures.NewUser(
					testfixtures.WithUserID("u-9"),
					testfixtures.WithRole(params.Input.Role),
				), nil
			},
		}
		router := NewRouter(RouterConfig{
			Users:      NewUserHandler(service, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "admin-1", Role: application.RoleAdmin})},
		})

		rec := serve(t, router, http.MethodPost, "/users", userRequest{Email: "new@example.com", DisplayName: "New", Password: "secret123", Role: "caller"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var payload map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if payload["id"] != "u-9" || payload["role"] != "caller" {
			t.Fatalf("unexpected payload: %#v", payload)
		}
		if _, ok := payload["password"]; ok {
			t.Fatal("password must never appear in responses")
		}
	})
}

func TestPermissionHandlers(t *testing.T) {
	t.Run("batch grants return the partitioned result", func(t *testing.T) {
		service := &permissionServiceStub{
			grant: func(ctx context.Context, params application.GrantPermissionsParams) (application.GrantResult, error) {
				if params.ViewerID != "viewer" || len(params.TargetIDs) != 3 {
					t.Fatalf("unexpected params: %#v", params)
				}
				return application.GrantResult{
					Created:       []application.PermissionGrant{{ID: "g-1", ViewerID: "viewer", TargetID: "fresh", GrantedAt: testTime, IsActive: true}},
					AlreadyActive: []application.PermissionGrant{{ID: "g-2", ViewerID: "viewer", TargetID: "active", GrantedAt: testTime, IsActive: true}},
					Failed:        []application.GrantFailure{{TargetID: "viewer", Reason: "viewer and target must differ"}},
				}, nil
			},
		}
		router := NewRouter(RouterConfig{
			Permissions: NewPermissionHandler(service, nil),
			Middleware:  []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "admin-1", Role: application.RoleAdmin})},
		})

		rec := serve(t, router, http.MethodPost, "/permissions", grantRequest{ViewerID: "viewer", TargetIDs: []string{"fresh", "active", "viewer"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var payload grantResultResponse
		if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode grant result: %v", err)
		}
		if len(payload.Created) != 1 || payload.Created[0].TargetID != "fresh" {
			t.Fatalf("unexpected created bucket: %#v", payload)
		}
		if len(payload.AlreadyActive) != 1 || len(payload.Failed) != 1 {
			t.Fatalf("unexpected buckets: %#v", payload)
		}
		if payload.Failed[0].Reason == "" {
			t.Fatalf("expected a failure reason, got %#v", payload.Failed)
		}
	})

	t.Run("revocation responds 204", func(t *testing.T) {
		revokedID := ""
		service := &permissionServiceStub{
			revoke: func(ctx context.Context, principal application.Principal, grantID string) error {
				revokedID = grantID
				return nil
			},
		}
		router := NewRouter(RouterConfig{
			Permissions: NewPermissionHandler(service, nil),
			Middleware:  []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "admin-1", Role: application.RoleAdmin})},
		})

		rec := serve(t, router, http.MethodDelete, "/permissions/g-1", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if revokedID != "g-1" {
			t.Fatalf("expected grant ID to reach the service, got %q", revokedID)
		}
	})

	t.Run("restore returns the reactivated grant", func(t *testing.T) {
		service := &permissionServiceStub{
			restore: func(ctx context.Context, principal application.Principal, grantID string) (application.PermissionGrant, error) {
				grant := testfixtures.NewGrant("viewer", "target")
				grant.ID = grantID
				return grant, nil
			},
		}
		router := NewRouter(RouterConfig{
			Permissions: NewPermissionHandler(service, nil),
			Middleware:  []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "admin-1", Role: application.RoleAdmin})},
		})

		rec := serve(t, router, http.MethodPost, "/permissions/g-1/restore", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var payload grantResponse
		if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode grant: %v", err)
		}
		if payload.ID != "g-1" || !payload.IsActive {
			t.Fatalf("unexpected payload: %#v", payload)
		}
	})
}

func TestCallHandlers(t *testing.T) {
	principal := application.Principal{UserID: "viewer", Role: application.RoleStandard}

	t.Run("listing passes the status filter through", func(t *testing.T) {
		service := &callServiceStub{
			visible: func(ctx context.Context, params application.VisibleCallsParams) ([]application.Call, error) {
				if len(params.Statuses) != 1 || params.Statuses[0] != lifecycle.StatusScheduled {
					t.Fatalf("unexpected status filter: %#v", params.Statuses)
				}
				return []application.Call{testfixtures.NewCall("viewer", testfixtures.WithCallID("c-1"))}, nil
			},
		}
		router := NewRouter(RouterConfig{
			Calls:      NewCallHandler(service, nil, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodGet, "/calls?status=scheduled", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var payload []callResponse
		if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode calls: %v", err)
		}
		if len(payload) != 1 || payload[0].ID != "c-1" {
			t.Fatalf("unexpected payload: %#v", payload)
		}
	})

	t.Run("unknown status values are a 400", func(t *testing.T) {
		service := &callServiceStub{
			visible: func(ctx context.Context, params application.VisibleCallsParams) ([]application.Call, error) {
				t.Fatal("service must not be called for an invalid filter")
				return nil, nil
			},
		}
		router := NewRouter(RouterConfig{
			Calls:      NewCallHandler(service, nil, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodGet, "/calls?status=paused", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid transitions map to 409 CALL_INVALID_TRANSITION", func(t *testing.T) {
		service := &callServiceStub{
			complete: func(ctx context.Context, p application.Principal, callID, notes string) (application.Call, error) {
				return application.Call{}, lifecycle.ErrInvalidTransition
			},
		}
		router := NewRouter(RouterConfig{
			Calls:      NewCallHandler(service, nil, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodPost, "/calls/c-1/complete", callActionRequest{Notes: "done"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if payload := decodeErrorResponse(t, rec); payload.ErrorCode != "CALL_INVALID_TRANSITION" {
			t.Fatalf("unexpected payload: %#v", payload)
		}
	})

	t.Run("reschedule forwards the parsed time", func(t *testing.T) {
		newTime := testTime.Add(48 * time.Hour)
		service := &callServiceStub{
			reschedule: func(ctx context.Context, params application.RescheduleCallParams) (application.Call, error) {
				if !params.NewTime.Equal(newTime) {
					t.Fatalf("unexpected new time: %v", params.NewTime)
				}
				return testfixtures.NewCall("viewer",
					testfixtures.WithCallID(params.CallID),
					testfixtures.WithScheduledAt(params.NewTime),
				), nil
			},
		}
		router := NewRouter(RouterConfig{
			Calls:      NewCallHandler(service, nil, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodPost, "/calls/c-1/reschedule", callActionRequest{ScheduledAt: newTime.Format(time.RFC3339)})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = serve(t, router, http.MethodPost, "/calls/c-1/reschedule", callActionRequest{ScheduledAt: "tomorrow"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for a malformed time, got %d", rec.Code)
		}
	})

	t.Run("snooze reaches the running scheduler", func(t *testing.T) {
		service := &callServiceStub{
			get: func(ctx context.Context, p application.Principal, callID string) (application.Call, error) {
				return application.Call{ID: callID, OwnerID: "viewer", Status: lifecycle.StatusScheduled}, nil
			},
		}
		snoozer := &snoozerStub{result: true}
		router := NewRouter(RouterConfig{
			Calls:      NewCallHandler(service, snoozer, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodPost, "/calls/c-1/snooze", callActionRequest{SnoozeMinutes: 10})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if snoozer.viewerID != "viewer" || snoozer.callID != "c-1" || snoozer.delay != 10*time.Minute {
			t.Fatalf("unexpected snooze call: %#v", snoozer)
		}
	})

	t.Run("snooze without a running scheduler is a 409", func(t *testing.T) {
		service := &callServiceStub{
			get: func(ctx context.Context, p application.Principal, callID string) (application.Call, error) {
				return application.Call{ID: callID, OwnerID: "viewer", Status: lifecycle.StatusScheduled}, nil
			},
		}
		router := NewRouter(RouterConfig{
			Calls:      NewCallHandler(service, &snoozerStub{result: false}, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodPost, "/calls/c-1/snooze", callActionRequest{SnoozeMinutes: 10})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("snooze on an invisible call maps the service error", func(t *testing.T) {
		service := &callServiceStub{
			get: func(ctx context.Context, p application.Principal, callID string) (application.Call, error) {
				return application.Call{}, application.ErrUnauthorized
			},
		}
		router := NewRouter(RouterConfig{
			Calls:      NewCallHandler(service, &snoozerStub{result: true}, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodPost, "/calls/c-1/snooze", callActionRequest{SnoozeMinutes: 10})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("dismiss clears the call's reminders", func(t *testing.T) {
		snoozer := &snoozerStub{}
		router := NewRouter(RouterConfig{
			Calls:      NewCallHandler(&callServiceStub{}, snoozer, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodPost, "/calls/c-1/dismiss", nil)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(snoozer.dismissed) != 1 || snoozer.dismissed[0] != "viewer/c-1" {
			t.Fatalf("unexpected dismiss calls: %#v", snoozer.dismissed)
		}
	})

	t.Run("unknown actions are a 404", func(t *testing.T) {
		router := NewRouter(RouterConfig{
			Calls:      NewCallHandler(&callServiceStub{}, nil, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodPost, "/calls/c-1/archive", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestNotificationHandlers(t *testing.T) {
	principal := application.Principal{UserID: "viewer", Role: application.RoleStandard}

	t.Run("lists the viewer's pending notifications", func(t *testing.T) {
		center := &notificationCenterStub{notifications: []notify.Notification{{
			ID:            "n-1",
			ViewerID:      "viewer",
			CallID:        "c-1",
			Kind:          notify.KindReminder,
			OffsetMinutes: 15,
			FiredAt:       testTime,
			Call:          testfixtures.NewCall("viewer", testfixtures.WithCallID("c-1")),
		}}}
		router := NewRouter(RouterConfig{
			Notifications: NewNotificationHandler(center, nil),
			Middleware:    []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodGet, "/notifications", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var payload []notificationResponse
		if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode notifications: %v", err)
		}
		if len(payload) != 1 || payload[0].ID != "n-1" || payload[0].OffsetMinutes != 15 {
			t.Fatalf("unexpected payload: %#v", payload)
		}
		if payload[0].Call.ID != "c-1" {
			t.Fatalf("expected the call embedded, got %#v", payload[0])
		}
	})

	t.Run("dismissal responds 204 or 404", func(t *testing.T) {
		center := &notificationCenterStub{dismissResult: true}
		router := NewRouter(RouterConfig{
			Notifications: NewNotificationHandler(center, nil),
			Middleware:    []func(http.Handler) http.Handler{withPrincipal(principal)},
		})

		rec := serve(t, router, http.MethodDelete, "/notifications/n-1", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if center.dismissed != "n-1" {
			t.Fatalf("expected the notification ID to reach the center, got %q", center.dismissed)
		}

		center.dismissResult = false
		rec = serve(t, router, http.MethodDelete, "/notifications/n-2", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestRouterMethodHandling(t *testing.T) {
	router := NewRouter(RouterConfig{
		Calls:      NewCallHandler(&callServiceStub{}, nil, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "viewer"})},
	})

	rec := serve(t, router, http.MethodPatch, "/calls", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow == "" {
		t.Fatal("expected an Allow header")
	}

	rec = serve(t, router, http.MethodGet, "/calls/c-1/extra/deep", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a nested path, got %d", rec.Code)
	}
}
