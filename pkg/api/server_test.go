package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iflastandards/standards-authz/pkg/audit"
	"github.com/iflastandards/standards-authz/pkg/cache"
	"github.com/iflastandards/standards-authz/pkg/httputil"
	"github.com/iflastandards/standards-authz/pkg/identity"
	"github.com/iflastandards/standards-authz/pkg/observability"
	"github.com/iflastandards/standards-authz/pkg/ratelimit"
	"github.com/iflastandards/standards-authz/pkg/rbac"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUsers = `
users:
  - token: tok-admin
    id: user_root
    metadata:
      systemRole: superadmin
  - token: tok-rg-admin
    id: user_rg
    metadata:
      reviewGroups:
        - reviewGroupId: rg_isbd
          role: admin
  - token: tok-unimarc
    id: user_unimarc
    metadata:
      reviewGroups:
        - reviewGroupId: rg_unimarc
          role: admin
  - token: tok-editor
    id: user_editor
    metadata:
      teams:
        - teamId: team_isbd
          role: editor
          reviewGroup: rg_isbd
          namespaces: [ns_isbd]
  - token: tok-plain
    id: user_plain
`

type testServer struct {
	server   *Server
	cache    *cache.DecisionCache
	audit    *audit.MemoryLogger
	metrics  *observability.Metrics
	registry *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	source, err := identity.ParseStaticSource([]byte(testUsers))
	require.NoError(t, err)

	cfg := cache.DefaultConfig()
	cfg.SweepInterval = 0
	c, err := cache.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	log := audit.NewMemoryLogger(audit.Config{MaxRecords: 100}, nil)

	resolver := rbac.NewResolver(source, c)
	checker := rbac.NewChecker(c, rbac.WithAudit(log), rbac.WithCheckerObserver(metrics))
	mw := rbac.NewMiddleware(resolver, checker)

	server := NewServer(Options{
		Middleware:   mw,
		Checker:      checker,
		Cache:        c,
		Audit:        log,
		Metrics:      metrics,
		MaxBodyBytes: 1 << 20,
	})
	return &testServer{server: server, cache: c, audit: log, metrics: metrics, registry: registry}
}

func (ts *testServer) do(method, target, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func namespaceIDs(namespaces []*Namespace) []string {
	ids := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		ids = append(ids, ns.ID)
	}
	return ids
}

func TestListNamespaces(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		token string
		query string
		want  []string
	}{
		{name: "plain user sees public", token: "tok-plain", want: []string{"ns_isbd", "ns_isbdm"}},
		{name: "superadmin sees all", token: "tok-admin", want: []string{"ns_isbd", "ns_isbdm", "ns_unimarc"}},
		{name: "review group admin sees own private", token: "tok-unimarc", want: []string{"ns_isbd", "ns_isbdm", "ns_unimarc"}},
		{name: "review group filter", token: "tok-admin", query: "?reviewGroup=rg_unimarc", want: []string{"ns_unimarc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, "/api/namespaces"+tt.query, tt.token, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var namespaces []*Namespace
			decodeData(t, rec, &namespaces)
			assert.Equal(t, tt.want, namespaceIDs(namespaces))
		})
	}

	rec := ts.do(http.MethodGet, "/api/namespaces", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(httputil.RequestIDHeader))
}

func TestGetNamespace(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/namespaces/ns_isbd", "tok-plain", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ns Namespace
	decodeData(t, rec, &ns)
	assert.Equal(t, "ISBD Core", ns.Name)
	assert.Equal(t, "rg_isbd", ns.ReviewGroup)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/namespaces/ns_unimarc", "tok-plain", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/namespaces/ns_unimarc", "tok-unimarc", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/namespaces/ns_missing", "tok-admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/namespaces/ns_isbd", "", "").Code)
}

func TestCreateNamespace(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/namespaces", "tok-rg-admin",
		`{"id":"ns_isbd_new","name":"ISBD Next","reviewGroupId":"rg_isbd"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ns Namespace
	decodeData(t, rec, &ns)
	assert.Equal(t, "ns_isbd_new", ns.ID)
	assert.Equal(t, VisibilityPublic, ns.Visibility)
	assert.Equal(t, "draft", ns.Status)
	assert.Equal(t, "user_rg", ns.UpdatedBy)
	assert.False(t, ns.CreatedAt.IsZero())

	tests := []struct {
		name  string
		token string
		body  string
		want  int
	}{
		{"duplicate", "tok-rg-admin", `{"id":"ns_isbd_new","name":"Again","reviewGroupId":"rg_isbd"}`, http.StatusConflict},
		{"other review group", "tok-rg-admin", `{"id":"ns_x","name":"X","reviewGroupId":"rg_unimarc"}`, http.StatusForbidden},
		{"team editor", "tok-editor", `{"id":"ns_y","name":"Y","reviewGroupId":"rg_isbd"}`, http.StatusForbidden},
		{"missing fields", "tok-admin", `{"name":"Z"}`, http.StatusBadRequest},
		{"bad visibility", "tok-admin", `{"id":"ns_z","name":"Z","reviewGroupId":"rg_isbd","visibility":"secret"}`, http.StatusBadRequest},
		{"bad json", "tok-admin", `{`, http.StatusBadRequest},
		{"anonymous", "", `{"id":"ns_z","name":"Z","reviewGroupId":"rg_isbd"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ts.do(http.MethodPost, "/api/namespaces", tt.token, tt.body).Code)
		})
	}
}

func TestUpdateNamespace(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPut, "/api/namespaces/ns_isbd", "tok-editor", `{"description":"Updated by the team"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ns Namespace
	decodeData(t, rec, &ns)
	assert.Equal(t, "Updated by the team", ns.Description)
	assert.Equal(t, "user_editor", ns.UpdatedBy)
	assert.Equal(t, "ISBD Core", ns.Name)

	// the decision that allowed the update was dropped with the namespace
	// change, leaving only the editor's role set
	assert.Equal(t, 1, ts.cache.Len())

	// editors of ns_isbd have no rights on ns_isbdm
	rec = ts.do(http.MethodPut, "/api/namespaces/ns_isbdm", "tok-editor", `{"name":"nope"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the owning review group's admin may edit any of its namespaces
	rec = ts.do(http.MethodPut, "/api/namespaces/ns_isbdm", "tok-rg-admin", `{"status":"archived"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPut, "/api/namespaces/ns_isbd", "tok-plain", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, "/api/namespaces/ns_missing", "tok-admin", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		ts.do(http.MethodPut, "/api/namespaces/ns_isbd", "tok-admin", `{"visibility":"hidden"}`).Code)
}

func TestAuthRoutesMounted(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/auth/context", "tok-editor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userId":"user_editor"`)

	rec = ts.do(http.MethodPost, "/api/auth/check", "tok-editor",
		`{"resourceType":"namespace","action":"update","attributes":{"namespaceId":"ns_isbd"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":true`)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/admin/cache/stats", "tok-admin", "").Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/admin/cache/stats", "tok-rg-admin", "").Code)
}

func TestDecisionLogRoutes(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusForbidden, ts.do(http.MethodPut, "/api/namespaces/ns_isbd", "tok-plain", `{}`).Code)
	require.Equal(t, 1, ts.audit.Len())

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/admin/decisions", "tok-editor", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/admin/decisions", "", "").Code)

	rec := ts.do(http.MethodGet, "/api/admin/decisions?userId=user_plain", "tok-admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Count int `json:"count"`
	}
	decodeData(t, rec, &data)
	assert.Equal(t, 1, data.Count)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/admin/decisions", "tok-admin", "").Code)
	assert.Equal(t, 0, ts.audit.Len())
}

func TestDecisionLogDisabled(t *testing.T) {
	source, err := identity.ParseStaticSource([]byte(testUsers))
	require.NoError(t, err)
	c, err := cache.New(cache.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	checker := rbac.NewChecker(c)
	server := NewServer(Options{
		Middleware: rbac.NewMiddleware(rbac.NewResolver(source, c), checker),
		Checker:    checker,
		Cache:      c,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/decisions", nil)
	req.Header.Set("Authorization", "Bearer tok-admin")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimited(t *testing.T) {
	source, err := identity.ParseStaticSource([]byte(testUsers))
	require.NoError(t, err)
	c, err := cache.New(cache.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	limits := ratelimit.NewMiddleware(
		ratelimit.NewMemoryLimiter(&ratelimit.Config{RequestsPerWindow: 2, WindowDuration: time.Minute}),
		ratelimit.NewMemoryLimiter(&ratelimit.Config{RequestsPerWindow: 1, WindowDuration: time.Minute}),
		nil,
	)
	checker := rbac.NewChecker(c)
	server := NewServer(Options{
		Middleware: rbac.NewMiddleware(rbac.NewResolver(source, c), checker),
		Checker:    checker,
		Cache:      c,
		RateLimit:  limits,
	})

	get := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/namespaces", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("tok-plain").Code)
	assert.Equal(t, http.StatusOK, get("tok-plain").Code)
	rec := get("tok-plain")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), ratelimit.CodeRateLimited)

	// other callers keep their own budget
	assert.Equal(t, http.StatusOK, get("tok-admin").Code)
	assert.Equal(t, http.StatusUnauthorized, get("").Code)
	assert.Equal(t, http.StatusTooManyRequests, get("").Code)
}

func TestHTTPMetrics(t *testing.T) {
	ts := newTestServer(t)

	ts.do(http.MethodGet, "/api/namespaces/ns_isbd", "tok-plain", "")
	ts.do(http.MethodGet, "/api/namespaces/ns_isbdm", "tok-plain", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(
		ts.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/namespaces/{namespace}", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(
		ts.metrics.DecisionsTotal.WithLabelValues("namespace", "read", "allowed", rbac.SourceEvaluated)))
}

func TestHealthRouter(t *testing.T) {
	ts := newTestServer(t)
	health := observability.NewHealthChecker(nil, "test")
	router := NewHealthRouter(health, ts.registry)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	ts.do(http.MethodGet, "/api/namespaces", "tok-plain", "")
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "authz_http_requests_total")

	rec = httptest.NewRecorder()
	NewHealthRouter(health, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()

	all, err := s.ListNamespaces()
	require.NoError(t, err)
	assert.Equal(t, []string{"ns_isbd", "ns_isbdm", "ns_unimarc"}, namespaceIDs(all))

	// callers get copies
	all[0].Name = "changed"
	ns, err := s.GetNamespace("ns_isbd")
	require.NoError(t, err)
	assert.Equal(t, "ISBD Core", ns.Name)

	name := "Renamed"
	updated, err := s.UpdateNamespace("ns_isbd", NamespacePatch{Name: &name}, "user_x")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "user_x", updated.UpdatedBy)

	_, err = s.GetNamespace("nope")
	assert.ErrorIs(t, err, ErrNamespaceNotFound)
	_, err = s.UpdateNamespace("nope", NamespacePatch{}, "user_x")
	assert.ErrorIs(t, err, ErrNamespaceNotFound)
	assert.ErrorIs(t, s.CreateNamespace(&Namespace{ID: "ns_isbd"}), ErrNamespaceExists)
}
