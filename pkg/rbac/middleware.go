package rbac

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/iflastandards/standards-authz/pkg/contextkeys"
	"github.com/iflastandards/standards-authz/pkg/httputil"
	"github.com/iflastandards/standards-authz/pkg/observability"
)

// ResponseTimeHeader carries the time spent in the handler chain
const ResponseTimeHeader = "X-Response-Time"

// RequestFunc builds the authorization request for an HTTP request
type RequestFunc func(r *http.Request) (Request, error)

// Middleware enforces authentication and authorization on HTTP routes
type Middleware struct {
	resolver       *Resolver
	checker        *Checker
	logger         *observability.Logger
	includeDetails bool
}

// MiddlewareOption configures a Middleware
type MiddlewareOption func(*Middleware)

// WithErrorDetails includes hints, resource and attributes in error bodies
func WithErrorDetails(include bool) MiddlewareOption {
	return func(m *Middleware) { m.includeDetails = include }
}

// WithMiddlewareLogger sets the logger used for infrastructure failures
func WithMiddlewareLogger(l *observability.Logger) MiddlewareOption {
	return func(m *Middleware) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMiddleware creates the authorization middleware
func NewMiddleware(resolver *Resolver, checker *Checker, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		resolver: resolver,
		checker:  checker,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RoleSetFromContext returns the role set stored by the middleware
func RoleSetFromContext(r *http.Request) (*RoleSet, bool) {
	roles, ok := r.Context().Value(contextkeys.RoleSetKey).(*RoleSet)
	return roles, ok && roles != nil
}

// Require authenticates the caller and checks the request built by build.
// A build error is answered with 400.
func (m *Middleware) Require(build RequestFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.timed(func(w http.ResponseWriter, r *http.Request) {
			r, roles, ok := m.authenticate(w, r, true)
			if !ok {
				return
			}

			req, err := build(r)
			if err != nil {
				m.writeError(w, r, invalidRequest(err))
				return
			}

			d, err := m.checker.Check(r.Context(), roles, req)
			if err != nil {
				m.logFailure(r, err, "authorization check failed")
				m.writeError(w, r, InternalError(err))
				return
			}
			if !d.Allowed {
				denied := PermissionDenied(req)
				if m.includeDetails {
					denied.Details["attributes"] = req.Attributes().Map()
					denied.Details["reason"] = d.Reason
				}
				m.writeError(w, r, denied)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRequest checks a fixed request
func (m *Middleware) RequireRequest(req Request) func(http.Handler) http.Handler {
	return m.Require(func(*http.Request) (Request, error) { return req, nil })
}

// RequireAuthentication only requires a resolved identity
func (m *Middleware) RequireAuthentication() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.timed(func(w http.ResponseWriter, r *http.Request) {
			r, _, ok := m.authenticate(w, r, true)
			if !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuth attaches the role set when there is one and never rejects an
// anonymous caller
func (m *Middleware) OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.timed(func(w http.ResponseWriter, r *http.Request) {
			r, _, ok := m.authenticate(w, r, false)
			if !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperadmin rejects authenticated callers without the system role
// with INSUFFICIENT_ROLE
func (m *Middleware) RequireSuperadmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.timed(func(w http.ResponseWriter, r *http.Request) {
			r, roles, ok := m.authenticate(w, r, true)
			if !ok {
				return
			}
			if !roles.IsSuperadmin() {
				m.writeError(w, r, InsufficientRole(SystemRoleSuperadmin))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireNamespaceAccess checks namespace read on the route variable param
// ("namespace" when empty)
func (m *Middleware) RequireNamespaceAccess(param string) func(http.Handler) http.Handler {
	if param == "" {
		param = "namespace"
	}
	return m.Require(func(r *http.Request) (Request, error) {
		ns := mux.Vars(r)[param]
		if ns == "" {
			return Request{}, fmt.Errorf("missing route variable %q", param)
		}
		return Namespace(NamespaceRead, NamespaceAttrs{NamespaceID: ns}), nil
	})
}

// authenticate resolves the caller once per request. The returned request
// carries the role set. ok is false when a response has been written.
func (m *Middleware) authenticate(w http.ResponseWriter, r *http.Request, required bool) (*http.Request, *RoleSet, bool) {
	if roles, ok := RoleSetFromContext(r); ok {
		return r, roles, true
	}

	roles, err := m.resolver.Resolve(r.Context())
	if err != nil {
		m.logFailure(r, err, "failed to resolve authorization context")
		m.writeError(w, r, ContextError(err))
		return r, nil, false
	}
	if roles == nil {
		if required {
			m.writeError(w, r, Unauthenticated())
			return r, nil, false
		}
		return r, nil, true
	}

	ctx := contextkeys.WithUserID(r.Context(), roles.UserID)
	ctx = contextkeys.WithRoleSet(ctx, roles)
	return r.WithContext(ctx), roles, true
}

func (m *Middleware) writeError(w http.ResponseWriter, r *http.Request, e *AuthzError) {
	var details interface{}
	if m.includeDetails && len(e.Details) > 0 {
		details = e.Details
	}
	httputil.WriteAPIError(w, r, e.HTTPStatus(), e.Code, e.Message, details)
}

func (m *Middleware) logFailure(r *http.Request, err error, msg string) {
	loggerFor(r.Context(), m.logger).WithError(err).WithField("path", r.URL.Path).Error(msg)
}

func invalidRequest(err error) *AuthzError {
	e := newError(CodeInvalidRequest, "Invalid authorization request")
	e.Err = err
	if errors.Is(err, ErrUnknownResource) || errors.Is(err, ErrInvalidAction) {
		e.Message = err.Error()
	}
	return e
}

// timed sets the response time header just before the status is written
func (m *Middleware) timed(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn(&timingWriter{ResponseWriter: w, start: time.Now()}, r)
	})
}

type timingWriter struct {
	http.ResponseWriter
	start       time.Time
	wroteHeader bool
}

func (tw *timingWriter) WriteHeader(code int) {
	if !tw.wroteHeader {
		tw.wroteHeader = true
		ms := float64(time.Since(tw.start).Microseconds()) / 1000
		tw.Header().Set(ResponseTimeHeader, fmt.Sprintf("%.2fms", ms))
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timingWriter) Write(b []byte) (int, error) {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}
