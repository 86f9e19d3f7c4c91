// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the service must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/iflastandards/standards-authz/pkg/contextkeys"
//	ctx = contextkeys.WithRoleSet(ctx, roles)
//	roles, _ := ctx.Value(contextkeys.RoleSetKey).(*rbac.RoleSet)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RoleSetKey contains *rbac.RoleSet
	// Set by: rbac.Middleware after a successful resolve
	// Required by: handlers behind Require/RequireAuthentication
	// Type: *rbac.RoleSet
	RoleSetKey Key = "auth_context"

	// BearerTokenKey contains the raw bearer token string
	// Set by: identity.TokenMiddleware (pkg/identity/middleware.go)
	// Used by: identity.OIDCSource
	// Type: string
	BearerTokenKey Key = "bearer_token"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, error envelopes, decision audit log
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: rbac.Middleware once an identity has been resolved
	// Used by: Logger
	// Type: string
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithRoleSet adds the resolved role set to the context
func WithRoleSet(ctx context.Context, roles interface{}) context.Context {
	return context.WithValue(ctx, RoleSetKey, roles)
}

// WithBearerToken adds the raw bearer token to the context
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, BearerTokenKey, token)
}

// GetBearerToken retrieves the bearer token from context
func GetBearerToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(BearerTokenKey).(string)
	return token, ok && token != ""
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}
