package config

import (
	"fmt"
	"time"

	"github.com/iflastandards/standards-authz/pkg/audit"
	"github.com/iflastandards/standards-authz/pkg/cache"
	"github.com/iflastandards/standards-authz/pkg/identity"
	"github.com/iflastandards/standards-authz/pkg/observability"
	"github.com/iflastandards/standards-authz/pkg/ratelimit"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable
const EnvPrefix = "AUTHZ"

// Identity modes
const (
	IdentityOIDC   = "oidc"
	IdentityStatic = "static"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Cache         CacheConfig
	Identity      IdentityConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig `split_words:"true"`
	Debug         DebugConfig

	// ConfigFile is an optional YAML overlay, watched for changes
	ConfigFile string `split_words:"true"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `default:"0.0.0.0"`
	Port            string        `default:"8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"15s"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	MaxBodyBytes    int64         `split_words:"true" default:"1048576"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `split_words:"true" default:"9090"`
}

// CacheConfig holds decision cache settings
type CacheConfig struct {
	Enabled       bool                     `default:"true"`
	MaxSize       int                      `split_words:"true" default:"1000"`
	DefaultTTL    time.Duration            `split_words:"true" default:"5m"`
	RoleSetTTL    time.Duration            `split_words:"true" default:"10m"`
	SweepInterval time.Duration            `split_words:"true" default:"1m"`
	ResourceTTLs  map[string]time.Duration `envconfig:"RESOURCE_TTLS"`
}

// IdentityConfig selects and configures the identity source
type IdentityConfig struct {
	Mode            string        `default:"oidc"`
	IssuerURL       string        `split_words:"true"`
	ClientID        string        `split_words:"true"`
	SkipIssuerCheck bool          `split_words:"true"`
	MetadataClaim   string        `split_words:"true" default:"public_metadata"`
	UserInfo        bool          `split_words:"true" default:"true"`
	TokenCacheSize  int           `split_words:"true" default:"1000"`
	TokenCacheTTL   time.Duration `split_words:"true" default:"5m"`
	StaticUsersFile string        `split_words:"true"`
}

// RedisConfig configures the invalidation bus. An empty URL keeps
// invalidations local.
type RedisConfig struct {
	URL        string
	Channel    string `default:"authz:invalidations"`
	InstanceID string `split_words:"true"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `split_words:"true" default:"info"`

	MetricsEnabled bool `split_words:"true" default:"true"`

	// OpenTelemetry
	OTelEnabled        bool   `envconfig:"OTEL_ENABLED"`
	OTelEndpoint       string `envconfig:"OTEL_ENDPOINT" default:"localhost:4317"`
	OTelServiceName    string `envconfig:"OTEL_SERVICE_NAME" default:"standards-authz"`
	OTelServiceVersion string `envconfig:"OTEL_SERVICE_VERSION" default:"1.0.0"`
	OTelInsecure       bool   `envconfig:"OTEL_INSECURE" default:"true"`
}

// RateLimitConfig limits requests per caller. Limits are per minute; with
// Redis configured the counters are shared across instances.
type RateLimitConfig struct {
	Enabled            bool `default:"true"`
	CallerPerMinute    int  `split_words:"true" default:"1200"`
	AnonymousPerMinute int  `split_words:"true" default:"60"`
	Burst              int  `default:"100"`
}

// DebugConfig enables the decision log and verbose error bodies
type DebugConfig struct {
	Enabled      bool
	MaxRecords   int  `split_words:"true" default:"1000"`
	ErrorDetails bool `split_words:"true"`
}

// LoadConfig loads configuration from AUTHZ_* environment variables and
// applies the overlay file when one is configured
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if cfg.ConfigFile != "" {
		overlay, err := LoadOverlay(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg.ApplyOverlay(overlay)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyOverlay merges overlay TTLs over the environment's
func (c *Config) ApplyOverlay(o *Overlay) {
	if o == nil || len(o.ResourceTTLs) == 0 {
		return
	}
	if c.Cache.ResourceTTLs == nil {
		c.Cache.ResourceTTLs = make(map[string]time.Duration, len(o.ResourceTTLs))
	}
	for rt, ttl := range o.ResourceTTLs {
		c.Cache.ResourceTTLs[rt] = ttl
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if err := c.CacheConfig().Validate(); err != nil {
		return err
	}

	switch c.Identity.Mode {
	case IdentityOIDC:
		oidcCfg := c.OIDCConfig()
		if err := oidcCfg.Validate(); err != nil {
			return err
		}
	case IdentityStatic:
		if c.Identity.StaticUsersFile == "" {
			return fmt.Errorf("static users file is required for static identity")
		}
	default:
		return fmt.Errorf("invalid identity mode: %s (must be %s or %s)", c.Identity.Mode, IdentityOIDC, IdentityStatic)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	if c.RateLimit.Enabled && (c.RateLimit.CallerPerMinute <= 0 || c.RateLimit.AnonymousPerMinute <= 0) {
		return fmt.Errorf("rate limits must be positive when rate limiting is enabled")
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit burst must not be negative")
	}

	if c.Debug.MaxRecords < 0 {
		return fmt.Errorf("debug max records must not be negative")
	}
	return nil
}

// Address returns the API listen address
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

// HealthAddress returns the health/metrics listen address
func (s ServerConfig) HealthAddress() string {
	return s.Host + ":" + s.HealthPort
}

// CacheConfig converts to the decision cache configuration. Configured
// resource TTLs are merged over the defaults.
func (c *Config) CacheConfig() *cache.Config {
	ttls := cache.DefaultResourceTTLs()
	for rt, ttl := range c.Cache.ResourceTTLs {
		ttls[rt] = ttl
	}
	return &cache.Config{
		Enabled:       c.Cache.Enabled,
		MaxSize:       c.Cache.MaxSize,
		DefaultTTL:    c.Cache.DefaultTTL,
		RoleSetTTL:    c.Cache.RoleSetTTL,
		ResourceTTLs:  ttls,
		SweepInterval: c.Cache.SweepInterval,
	}
}

// OIDCConfig converts to the OIDC identity source configuration
func (c *Config) OIDCConfig() identity.OIDCConfig {
	return identity.OIDCConfig{
		IssuerURL:       c.Identity.IssuerURL,
		ClientID:        c.Identity.ClientID,
		SkipIssuerCheck: c.Identity.SkipIssuerCheck,
		MetadataClaim:   c.Identity.MetadataClaim,
		UserInfo:        c.Identity.UserInfo,
		CacheSize:       c.Identity.TokenCacheSize,
		CacheTTL:        c.Identity.TokenCacheTTL,
	}
}

// OTelConfig converts to the OpenTelemetry configuration
func (c *Config) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
	}
}

// BusConfig converts to the invalidation bus configuration
func (c *Config) BusConfig() cache.BusConfig {
	return cache.BusConfig{Channel: c.Redis.Channel, InstanceID: c.Redis.InstanceID}
}

// RateLimits converts to the caller and anonymous limiter configurations
func (c *Config) RateLimits() (caller, anonymous *ratelimit.Config) {
	caller = &ratelimit.Config{
		RequestsPerWindow: c.RateLimit.CallerPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         c.RateLimit.Burst,
	}
	anonymous = &ratelimit.Config{
		RequestsPerWindow: c.RateLimit.AnonymousPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         c.RateLimit.Burst / 10,
	}
	return caller, anonymous
}

// AuditConfig converts to the decision log configuration
func (c *Config) AuditConfig() audit.Config {
	return audit.Config{MaxRecords: c.Debug.MaxRecords, Verbose: c.Debug.Enabled}
}

// LogLevel parses the configured log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLevel(c.Observability.LogLevel)
}
