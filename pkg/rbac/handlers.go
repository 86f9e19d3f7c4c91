package rbac

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/iflastandards/standards-authz/pkg/cache"
	"github.com/iflastandards/standards-authz/pkg/httputil"
)

// MaxBatchChecks bounds a single batch check request
const MaxBatchChecks = 100

// Handlers provides HTTP handlers for authorization queries and cache
// administration
type Handlers struct {
	mw          *Middleware
	checker     *Checker
	cache       *cache.DecisionCache
	invalidator cache.Invalidator
}

// NewHandlers creates new handlers. inv may be nil to invalidate only the
// local cache.
func NewHandlers(mw *Middleware, checker *Checker, c *cache.DecisionCache, inv cache.Invalidator) *Handlers {
	if inv == nil && c != nil {
		inv = &cache.LocalInvalidator{Cache: c}
	}
	return &Handlers{mw: mw, checker: checker, cache: c, invalidator: inv}
}

// RegisterRoutes registers the auth routes and the superadmin-only cache
// routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	authed := h.mw.RequireAuthentication()
	router.Handle("/auth/context", authed(http.HandlerFunc(h.getContext))).Methods(http.MethodGet)
	router.Handle("/auth/check", authed(http.HandlerFunc(h.check))).Methods(http.MethodPost)
	router.Handle("/auth/check/batch", authed(http.HandlerFunc(h.checkBatch))).Methods(http.MethodPost)
	router.Handle("/auth/accessible", authed(http.HandlerFunc(h.getAccessible))).Methods(http.MethodGet)
	router.Handle("/auth/matrix", authed(http.HandlerFunc(h.getMatrix))).Methods(http.MethodGet)

	admin := h.mw.RequireSuperadmin()
	router.Handle("/admin/cache/stats", admin(http.HandlerFunc(h.getCacheStats))).Methods(http.MethodGet)
	router.Handle("/admin/cache/state", admin(http.HandlerFunc(h.getCacheState))).Methods(http.MethodGet)
	router.Handle("/admin/cache/invalidate", admin(http.HandlerFunc(h.invalidate))).Methods(http.MethodPost)
}

// CheckRequest is the body of a permission check
type CheckRequest struct {
	ResourceType string         `json:"resourceType"`
	Action       string         `json:"action"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// CheckResponse is one permission check result
type CheckResponse struct {
	Decision
	ResourceType string      `json:"resourceType"`
	Action       string      `json:"action"`
	RoleChecks   []RoleCheck `json:"roleChecks,omitempty"`
}

// InvalidateRequest names either a user or a resource
type InvalidateRequest struct {
	UserID       string `json:"userId,omitempty"`
	ResourceType string `json:"resourceType,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`
}

// getContext handles GET /auth/context
func (h *Handlers) getContext(w http.ResponseWriter, r *http.Request) {
	roles, _ := RoleSetFromContext(r)
	httputil.WriteData(w, roles)
}

// check handles POST /auth/check. ?explain=true adds the role checks.
func (h *Handlers) check(w http.ResponseWriter, r *http.Request) {
	roles, _ := RoleSetFromContext(r)

	var body CheckRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	req, err := ParseRequest(body.ResourceType, body.Action, body.Attributes)
	if err != nil {
		httputil.WriteBadRequest(w, r, err.Error())
		return
	}

	d, err := h.checker.Check(r.Context(), roles, req)
	if err != nil {
		httputil.WriteInternalError(w, r)
		return
	}

	resp := CheckResponse{ResourceType: body.ResourceType, Action: body.Action, Decision: d}
	if httputil.ParseQueryString(r, "explain", "") == "true" {
		resp.RoleChecks = Explain(roles, req).Checks
	}
	httputil.WriteData(w, resp)
}

// checkBatch handles POST /auth/check/batch
func (h *Handlers) checkBatch(w http.ResponseWriter, r *http.Request) {
	roles, _ := RoleSetFromContext(r)

	var body struct {
		Checks []CheckRequest `json:"checks"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if len(body.Checks) == 0 {
		httputil.WriteBadRequest(w, r, "checks must not be empty")
		return
	}
	if len(body.Checks) > MaxBatchChecks {
		httputil.WriteBadRequest(w, r, fmt.Sprintf("at most %d checks per batch", MaxBatchChecks))
		return
	}

	reqs := make([]Request, len(body.Checks))
	for i, c := range body.Checks {
		req, err := ParseRequest(c.ResourceType, c.Action, c.Attributes)
		if err != nil {
			httputil.WriteBadRequest(w, r, fmt.Sprintf("checks[%d]: %v", i, err))
			return
		}
		reqs[i] = req
	}

	decisions, err := h.checker.CheckBatch(r.Context(), roles, reqs)
	if err != nil {
		httputil.WriteInternalError(w, r)
		return
	}

	results := make([]CheckResponse, len(decisions))
	for i, d := range decisions {
		results[i] = CheckResponse{ResourceType: body.Checks[i].ResourceType, Action: body.Checks[i].Action, Decision: d}
	}
	httputil.WriteData(w, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// getAccessible handles GET /auth/accessible
func (h *Handlers) getAccessible(w http.ResponseWriter, r *http.Request) {
	roles, _ := RoleSetFromContext(r)
	httputil.WriteData(w, AccessibleResources(roles))
}

// getMatrix handles GET /auth/matrix
func (h *Handlers) getMatrix(w http.ResponseWriter, r *http.Request) {
	roles, _ := RoleSetFromContext(r)
	httputil.WriteData(w, map[string]interface{}{
		"userId": roles.UserID,
		"email":  roles.Email,
		"matrix": PermissionMatrix(roles),
	})
}

// getCacheStats handles GET /admin/cache/stats
func (h *Handlers) getCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		httputil.WriteNotFound(w, r, "decision cache is disabled")
		return
	}
	httputil.WriteData(w, h.cache.Stats())
}

// getCacheState handles GET /admin/cache/state
func (h *Handlers) getCacheState(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		httputil.WriteNotFound(w, r, "decision cache is disabled")
		return
	}
	httputil.WriteData(w, h.cache.Export())
}

// invalidate handles POST /admin/cache/invalidate
func (h *Handlers) invalidate(w http.ResponseWriter, r *http.Request) {
	if h.invalidator == nil {
		httputil.WriteNotFound(w, r, "decision cache is disabled")
		return
	}

	var body InvalidateRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	var (
		scope string
		err   error
	)
	switch {
	case body.UserID != "":
		scope = cache.ScopeUser
		err = h.invalidator.InvalidateUser(r.Context(), body.UserID)
	case body.ResourceType != "" && body.ResourceID != "":
		if !ResourceType(body.ResourceType).Valid() {
			httputil.WriteBadRequest(w, r, fmt.Sprintf("%v: %s", ErrUnknownResource, body.ResourceType))
			return
		}
		scope = cache.ScopeResource
		err = h.invalidator.InvalidateResource(r.Context(), body.ResourceType, body.ResourceID)
	default:
		httputil.WriteBadRequest(w, r, "either userId or resourceType and resourceId are required")
		return
	}
	if err != nil {
		loggerFor(r.Context(), h.mw.logger).WithError(err).Error("failed to invalidate cache")
		httputil.WriteInternalError(w, r)
		return
	}

	httputil.WriteData(w, map[string]interface{}{
		"scope":       scope,
		"invalidated": true,
	})
}
