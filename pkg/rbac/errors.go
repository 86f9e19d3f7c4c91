package rbac

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnknownResource is returned for a resource type outside the closed set
	ErrUnknownResource = errors.New("unknown resource type")

	// ErrInvalidAction is returned for an action the resource type does not define
	ErrInvalidAction = errors.New("invalid action for resource type")

	// ErrNoIdentitySource is returned when a Resolver has nothing to resolve from
	ErrNoIdentitySource = errors.New("no identity source configured")
)

// Error codes carried in denial envelopes
const (
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeAuthContextError = "AUTH_CONTEXT_ERROR"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeInsufficientRole = "INSUFFICIENT_ROLE"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInternalError    = "INTERNAL_ERROR"
)

var httpStatusMap = map[string]int{
	CodeUnauthenticated:  http.StatusUnauthorized,
	CodeAuthContextError: http.StatusInternalServerError,
	CodePermissionDenied: http.StatusForbidden,
	CodeInsufficientRole: http.StatusForbidden,
	CodeInvalidRequest:   http.StatusBadRequest,
	CodeInternalError:    http.StatusInternalServerError,
}

// AuthzError is an authorization failure with a structured code
type AuthzError struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
	Err     error
}

func (e *AuthzError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus returns the status the error should be served with
func (e *AuthzError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

func (e *AuthzError) Unwrap() error {
	return e.Err
}

func newError(code, message string) *AuthzError {
	return &AuthzError{Code: code, Message: message, Status: httpStatusMap[code]}
}

// Unauthenticated is returned when no identity could be resolved
func Unauthenticated() *AuthzError {
	e := newError(CodeUnauthenticated, "Authentication required")
	e.Details = map[string]any{"hint": "Sign in and retry with a valid bearer token"}
	return e
}

// PermissionDenied is returned when the evaluator says no
func PermissionDenied(req Request) *AuthzError {
	e := newError(CodePermissionDenied,
		fmt.Sprintf("You don't have permission to %s %s", req.Action(), req.Resource()))
	e.Details = map[string]any{"resource": req.Resource(), "action": req.Action()}
	return e
}

// InsufficientRole is returned when a system role is required
func InsufficientRole(required SystemRole) *AuthzError {
	e := newError(CodeInsufficientRole, fmt.Sprintf("This action requires the %s role", required))
	e.Details = map[string]any{"requiredRole": required}
	return e
}

// ContextError wraps a failure to resolve the caller's roles
func ContextError(err error) *AuthzError {
	e := newError(CodeAuthContextError, "Failed to resolve authorization context")
	e.Err = err
	return e
}

// InternalError wraps an unexpected failure while deciding
func InternalError(err error) *AuthzError {
	e := newError(CodeInternalError, "Authorization check failed")
	e.Err = err
	return e
}

// ErrorCode extracts the code of an AuthzError anywhere in err's chain
func ErrorCode(err error) string {
	var authzErr *AuthzError
	if errors.As(err, &authzErr) {
		return authzErr.Code
	}
	return ""
}
