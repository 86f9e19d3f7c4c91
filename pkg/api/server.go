package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/iflastandards/standards-authz/pkg/audit"
	"github.com/iflastandards/standards-authz/pkg/cache"
	"github.com/iflastandards/standards-authz/pkg/httputil"
	"github.com/iflastandards/standards-authz/pkg/identity"
	"github.com/iflastandards/standards-authz/pkg/observability"
	"github.com/iflastandards/standards-authz/pkg/ratelimit"
	"github.com/iflastandards/standards-authz/pkg/rbac"
	"github.com/prometheus/client_golang/prometheus"
)

// ServiceName names the server span and the health report
const ServiceName = "standards-authz"

// Options wires a Server. Storage defaults to the seeded MemoryStorage,
// Invalidator to a local one over Cache. A nil Audit log leaves the
// decision routes unregistered; a nil Metrics skips HTTP instrumentation
// and a nil RateLimit skips rate limiting.
type Options struct {
	Storage      Storage
	Middleware   *rbac.Middleware
	Checker      *rbac.Checker
	Cache        *cache.DecisionCache
	Invalidator  cache.Invalidator
	Audit        *audit.MemoryLogger
	Metrics      *observability.Metrics
	RateLimit    *ratelimit.Middleware
	Logger       *observability.Logger
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	storage     Storage
	router      *mux.Router
	handler     http.Handler
	mw          *rbac.Middleware
	checker     *rbac.Checker
	cache       *cache.DecisionCache
	invalidator cache.Invalidator
	audit       *audit.MemoryLogger
	logger      *observability.Logger
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	s := &Server{
		storage:     opts.Storage,
		router:      mux.NewRouter(),
		mw:          opts.Middleware,
		checker:     opts.Checker,
		cache:       opts.Cache,
		invalidator: opts.Invalidator,
		audit:       opts.Audit,
		logger:      opts.Logger,
	}
	if s.storage == nil {
		s.storage = NewMemoryStorage()
	}
	if s.logger == nil {
		s.logger = observability.NopLogger()
	}
	if s.invalidator == nil && s.cache != nil {
		s.invalidator = &cache.LocalInvalidator{Cache: s.cache}
	}

	middlewares := []mux.MiddlewareFunc{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		identity.TokenMiddleware,
	}
	if opts.RateLimit != nil {
		middlewares = append(middlewares, opts.RateLimit.Handler)
	}
	if opts.MaxBodyBytes > 0 {
		middlewares = append(middlewares, httputil.MaxBytesMiddleware(opts.MaxBodyBytes))
	}
	if opts.Metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	s.router.Use(middlewares...)

	s.setupRoutes()
	s.handler = observability.HTTPTracing(ServiceName)(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	rbac.NewHandlers(s.mw, s.checker, s.cache, s.invalidator).RegisterRoutes(api)

	authed := s.mw.RequireAuthentication()
	api.Handle("/namespaces", authed(http.HandlerFunc(s.listNamespaces))).Methods(http.MethodGet)
	api.Handle("/namespaces", authed(http.HandlerFunc(s.createNamespace))).Methods(http.MethodPost)
	api.Handle("/namespaces/{namespace}",
		s.mw.RequireNamespaceAccess("namespace")(http.HandlerFunc(s.getNamespace))).Methods(http.MethodGet)
	api.Handle("/namespaces/{namespace}",
		s.mw.Require(s.namespaceUpdateRequest)(http.HandlerFunc(s.updateNamespace))).Methods(http.MethodPut)

	if s.audit != nil {
		admin := api.PathPrefix("/admin").Subrouter()
		admin.Use(mux.MiddlewareFunc(s.mw.RequireSuperadmin()))
		audit.NewHandlers(s.audit).RegisterRoutes(admin)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the router so callers can add routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar under /api
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router.PathPrefix("/api").Subrouter())
}

// NewHealthRouter serves liveness, readiness and, when registry is set,
// Prometheus metrics on the health port
func NewHealthRouter(health *observability.HealthChecker, registry *prometheus.Registry) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health/live", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Readiness).Methods(http.MethodGet)
	if registry != nil {
		router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	}
	return router
}
