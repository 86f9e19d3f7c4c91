package rbac

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/iflastandards/standards-authz/pkg/cache"
	"github.com/iflastandards/standards-authz/pkg/httputil"
	"github.com/iflastandards/standards-authz/pkg/identity"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu          sync.Mutex
	decisions   []string
	resolutions []string
	malformed   []string
}

func (o *recordingObserver) ObserveDecision(resource, action string, allowed bool, source string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := "denied"
	if allowed {
		result = "allowed"
	}
	o.decisions = append(o.decisions, resource+":"+action+":"+result+":"+source)
}

func (o *recordingObserver) ObserveResolution(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolutions = append(o.resolutions, outcome)
}

func (o *recordingObserver) ObserveMalformed(field string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.malformed = append(o.malformed, field)
}

func newTestCache(t *testing.T) *cache.DecisionCache {
	t.Helper()
	cfg := cache.DefaultConfig()
	cfg.SweepInterval = 0
	c, err := cache.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// Tokens known to testSource
const (
	tokenAdmin      = "tok-admin"
	tokenRGAdmin    = "tok-rg-admin"
	tokenEditor     = "tok-editor"
	tokenTranslator = "tok-translator"
	tokenPlain      = "tok-plain"
)

func testSource(t *testing.T) *identity.StaticSource {
	t.Helper()
	src, err := identity.ParseStaticSource([]byte(`
users:
  - token: tok-admin
    id: user_root
    email: root@example.org
    metadata:
      systemRole: superadmin
  - token: tok-rg-admin
    id: user_rg
    email: rg@example.org
    metadata:
      reviewGroups:
        - reviewGroupId: rg_isbd
          role: admin
  - token: tok-editor
    id: user_editor
    email: editor@example.org
    metadata:
      teams:
        - teamId: team_isbd
          role: editor
          reviewGroup: rg_isbd
          namespaces: [ns_isbd]
  - token: tok-translator
    id: user_translator
    email: translator@example.org
    metadata:
      translations:
        - language: fr
          namespaces: [ns_isbdm]
  - token: tok-plain
    id: user_plain
    email: plain@example.org
`))
	require.NoError(t, err)
	return src
}

type testStack struct {
	cache    *cache.DecisionCache
	resolver *Resolver
	checker  *Checker
	mw       *Middleware
	observer *recordingObserver
	router   *mux.Router
}

func newTestStack(t *testing.T, source identity.Source, mwOpts ...MiddlewareOption) *testStack {
	t.Helper()
	obs := &recordingObserver{}
	c := newTestCache(t)
	resolver := NewResolver(source, c, WithResolverObserver(obs))
	checker := NewChecker(c, WithCheckerObserver(obs))
	mw := NewMiddleware(resolver, checker, mwOpts...)

	router := mux.NewRouter()
	router.Use(httputil.RequestIDMiddleware, identity.TokenMiddleware)
	return &testStack{cache: c, resolver: resolver, checker: checker, mw: mw, observer: obs, router: router}
}

func withBearer(r *http.Request, token string) *http.Request {
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}
