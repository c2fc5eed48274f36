package http

import (
	"context"
	"log/slog"

	"github.com/example/interview-tracker/internal/application"
	"github.com/example/interview-tracker/internal/logging"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	userIDContextKey    contextKey = "user_id"
	grantIDContextKey   contextKey = "grant_id"
	callIDContextKey    contextKey = "call_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithUserID injects the user identifier resolved from the request path.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts a user identifier previously associated with the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}

// ContextWithGrantID injects the grant identifier resolved from the request path.
func ContextWithGrantID(ctx context.Context, grantID string) context.Context {
	return context.WithValue(ctx, grantIDContextKey, grantID)
}

// GrantIDFromContext extracts a grant identifier previously associated with the context.
func GrantIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(grantIDContextKey).(string)
	return id, ok
}

// ContextWithCallID injects the call identifier resolved from the request path.
func ContextWithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, callIDContextKey, callID)
}

// CallIDFromContext extracts a call identifier previously associated with the context.
func CallIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callIDContextKey).(string)
	return id, ok
}

// ContextWithLogger attaches a request scoped logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request scoped logger if one was attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
