package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iflastandards/standards-authz/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setStaticIdentity(t *testing.T) {
	t.Helper()
	t.Setenv("AUTHZ_IDENTITY_MODE", IdentityStatic)
	t.Setenv("AUTHZ_IDENTITY_STATIC_USERS_FILE", "/etc/authz/users.yaml")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setStaticIdentity(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.HealthAddress())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(1048576), cfg.Server.MaxBodyBytes)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 1000, cfg.Cache.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.RoleSetTTL)

	assert.Equal(t, "public_metadata", cfg.Identity.MetadataClaim)
	assert.True(t, cfg.Identity.UserInfo)
	assert.Equal(t, "authz:invalidations", cfg.Redis.Channel)
	assert.Empty(t, cfg.Redis.URL)

	assert.Equal(t, observability.InfoLevel, cfg.LogLevel())
	assert.False(t, cfg.Observability.OTelEnabled)
	assert.False(t, cfg.Debug.Enabled)
	assert.Equal(t, 1000, cfg.Debug.MaxRecords)

	assert.True(t, cfg.RateLimit.Enabled)
	caller, anonymous := cfg.RateLimits()
	assert.Equal(t, 1200, caller.RequestsPerWindow)
	assert.Equal(t, 100, caller.BurstSize)
	assert.Equal(t, 60, anonymous.RequestsPerWindow)
	assert.Equal(t, 10, anonymous.BurstSize)
	assert.Equal(t, time.Minute, anonymous.WindowDuration)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("AUTHZ_SERVER_PORT", "3000")
	t.Setenv("AUTHZ_SERVER_READ_TIMEOUT", "5s")
	t.Setenv("AUTHZ_CACHE_MAX_SIZE", "50")
	t.Setenv("AUTHZ_CACHE_RESOURCE_TTLS", "namespace:15m,spreadsheet:30s")
	t.Setenv("AUTHZ_IDENTITY_ISSUER_URL", "https://clerk.example.org")
	t.Setenv("AUTHZ_IDENTITY_CLIENT_ID", "admin-app")
	t.Setenv("AUTHZ_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AUTHZ_OBSERVABILITY_LOG_LEVEL", "debug")
	t.Setenv("AUTHZ_DEBUG_ENABLED", "true")
	t.Setenv("AUTHZ_DEBUG_ERROR_DETAILS", "true")
	t.Setenv("AUTHZ_RATE_LIMIT_ENABLED", "false")
	t.Setenv("AUTHZ_RATE_LIMIT_ANONYMOUS_PER_MINUTE", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Address())
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 50, cfg.Cache.MaxSize)
	assert.Equal(t, IdentityOIDC, cfg.Identity.Mode)
	assert.Equal(t, "https://clerk.example.org", cfg.OIDCConfig().IssuerURL)
	assert.Equal(t, "admin-app", cfg.OIDCConfig().ClientID)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, observability.DebugLevel, cfg.LogLevel())
	assert.True(t, cfg.AuditConfig().Verbose)
	assert.True(t, cfg.Debug.ErrorDetails)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.RateLimit.AnonymousPerMinute)

	cc := cfg.CacheConfig()
	assert.Equal(t, 15*time.Minute, cc.ResourceTTLs["namespace"])
	assert.Equal(t, 30*time.Second, cc.ResourceTTLs["spreadsheet"])
	// defaults survive for types the environment does not mention
	assert.Equal(t, 2*time.Minute, cc.ResourceTTLs["vocabulary"])
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "oidc without issuer",
			env:  map[string]string{},
			want: "issuer",
		},
		{
			name: "unknown identity mode",
			env:  map[string]string{"AUTHZ_IDENTITY_MODE": "saml"},
			want: "invalid identity mode",
		},
		{
			name: "static without users file",
			env:  map[string]string{"AUTHZ_IDENTITY_MODE": "static"},
			want: "static users file",
		},
		{
			name: "same ports",
			env: map[string]string{
				"AUTHZ_IDENTITY_MODE":              "static",
				"AUTHZ_IDENTITY_STATIC_USERS_FILE": "users.yaml",
				"AUTHZ_SERVER_HEALTH_PORT":         "8080",
			},
			want: "must be different",
		},
		{
			name: "negative cache size",
			env: map[string]string{
				"AUTHZ_IDENTITY_MODE":              "static",
				"AUTHZ_IDENTITY_STATIC_USERS_FILE": "users.yaml",
				"AUTHZ_CACHE_MAX_SIZE":             "-1",
			},
			want: "max size",
		},
		{
			name: "zero caller rate",
			env: map[string]string{
				"AUTHZ_IDENTITY_MODE":                "static",
				"AUTHZ_IDENTITY_STATIC_USERS_FILE":   "users.yaml",
				"AUTHZ_RATE_LIMIT_CALLER_PER_MINUTE": "0",
			},
			want: "rate limits",
		},
		{
			name: "bad duration",
			env:  map[string]string{"AUTHZ_CACHE_DEFAULT_TTL": "soon"},
			want: "failed to read environment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authz.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  resourceTtls:\n    release: 20m\n"), 0o600))

	setStaticIdentity(t)
	t.Setenv("AUTHZ_CACHE_RESOURCE_TTLS", "release:1m,namespace:3m")
	t.Setenv("AUTHZ_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, cfg.Cache.ResourceTTLs["release"])
	assert.Equal(t, 3*time.Minute, cfg.Cache.ResourceTTLs["namespace"])

	t.Setenv("AUTHZ_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestParseOverlay(t *testing.T) {
	o, err := ParseOverlay([]byte(`
cache:
  resourceTtls:
    namespace: 15m
    spreadsheet: 30s
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Duration{
		"namespace":   15 * time.Minute,
		"spreadsheet": 30 * time.Second,
	}, o.ResourceTTLs)

	o, err = ParseOverlay([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, o.ResourceTTLs)

	for _, doc := range []string{
		"cache:\n  resourceTtls:\n    namespace: later\n",
		"cache:\n  resourceTtls:\n    namespace: 0s\n",
		"cache:\n  resourceTtls:\n    namespace: -1m\n",
		"cache: [",
	} {
		_, err := ParseOverlay([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestApplyOverlay(t *testing.T) {
	var cfg Config
	cfg.ApplyOverlay(nil)
	assert.Nil(t, cfg.Cache.ResourceTTLs)

	cfg.ApplyOverlay(&Overlay{ResourceTTLs: map[string]time.Duration{"team": time.Hour}})
	assert.Equal(t, time.Hour, cfg.Cache.ResourceTTLs["team"])
}

type ttlSink struct {
	mu   sync.Mutex
	last map[string]time.Duration
	n    int
}

func (s *ttlSink) apply(ttls map[string]time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = ttls
	s.n++
}

func (s *ttlSink) snapshot() (map[string]time.Duration, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.n
}

func TestWatchOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authz.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  resourceTtls:\n    namespace: 1m\n"), 0o600))

	sink := &ttlSink{}
	w, err := WatchOverlay(path, sink.apply, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("cache:\n  resourceTtls:\n    namespace: 7m\n"), 0o600))
	require.Eventually(t, func() bool {
		ttls, _ := sink.snapshot()
		return ttls["namespace"] == 7*time.Minute
	}, 5*time.Second, 20*time.Millisecond)

	// a broken document keeps the previous TTLs
	_, before := sink.snapshot()
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  resourceTtls:\n    namespace: nope\n"), 0o600))
	// unrelated files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o600))
	time.Sleep(3 * ReloadDelay)
	ttls, after := sink.snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, 7*time.Minute, ttls["namespace"])

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWatchOverlay_MissingDirectory(t *testing.T) {
	_, err := WatchOverlay(filepath.Join(t.TempDir(), "nope", "authz.yaml"), func(map[string]time.Duration) {}, nil)
	assert.Error(t, err)
}
