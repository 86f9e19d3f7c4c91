package cache

import (
	"fmt"
	"time"

	"github.com/iflastandards/standards-authz/pkg/observability"
)

// Default TTLs. Stable resources live longer than volatile ones.
const (
	DefaultTTL           = 5 * time.Minute
	DefaultRoleSetTTL    = 10 * time.Minute
	DefaultMaxSize       = 1000
	DefaultSweepInterval = time.Minute
)

// DefaultResourceTTLs returns the per-resource-type TTLs applied when Set is
// called without an explicit TTL
func DefaultResourceTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		"reviewGroup": 10 * time.Minute,
		"namespace":   10 * time.Minute,
		"vocabulary":  2 * time.Minute,
		"translation": 2 * time.Minute,
		"spreadsheet": 1 * time.Minute,
	}
}

// Config holds cache configuration
type Config struct {
	Enabled       bool
	MaxSize       int                      // entries, not bytes
	DefaultTTL    time.Duration            // fallback TTL
	RoleSetTTL    time.Duration            // TTL for resolved role sets
	ResourceTTLs  map[string]time.Duration // per resource type
	SweepInterval time.Duration            // 0 disables the background sweep
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxSize:       DefaultMaxSize,
		DefaultTTL:    DefaultTTL,
		RoleSetTTL:    DefaultRoleSetTTL,
		ResourceTTLs:  DefaultResourceTTLs(),
		SweepInterval: DefaultSweepInterval,
	}
}

// Validate rejects negative sizes and durations
func (c *Config) Validate() error {
	if c.MaxSize < 0 {
		return fmt.Errorf("%w: max size %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.DefaultTTL < 0 || c.RoleSetTTL < 0 || c.SweepInterval < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	for rt, ttl := range c.ResourceTTLs {
		if ttl < 0 {
			return fmt.Errorf("%w: negative TTL for %s", ErrInvalidConfig, rt)
		}
	}
	return nil
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.MaxSize == 0 {
		out.MaxSize = DefaultMaxSize
	}
	if out.DefaultTTL == 0 {
		out.DefaultTTL = DefaultTTL
	}
	if out.RoleSetTTL == 0 {
		out.RoleSetTTL = DefaultRoleSetTTL
	}
	out.ResourceTTLs = copyTTLs(c.ResourceTTLs)
	return &out
}

// Stats represents cache statistics
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	HitRate   float64 `json:"hitRate"`
}

// EntrySnapshot describes one entry in an exported state
type EntrySnapshot struct {
	Key       string        `json:"key"`
	Kind      string        `json:"kind"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
	TTL       time.Duration `json:"ttl"`
	Hits      int64         `json:"hits"`
}

// State is a debugging snapshot of the whole cache
type State struct {
	Enabled      bool                     `json:"enabled"`
	MaxSize      int                      `json:"maxSize"`
	DefaultTTL   time.Duration            `json:"defaultTtl"`
	ResourceTTLs map[string]time.Duration `json:"resourceTtls"`
	Stats        Stats                    `json:"stats"`
	Entries      []EntrySnapshot          `json:"entries"`
}

// Recorder receives cache events. observability.Metrics implements it.
type Recorder interface {
	RecordHit(kind string)
	RecordMiss(kind string)
	RecordEviction(reason string)
	SetEntries(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordHit(string)      {}
func (nopRecorder) RecordMiss(string)     {}
func (nopRecorder) RecordEviction(string) {}
func (nopRecorder) SetEntries(int)        {}

// Option configures a DecisionCache
type Option func(*DecisionCache)

// WithClock replaces time.Now, mainly for TTL tests
func WithClock(now func() time.Time) Option {
	return func(c *DecisionCache) {
		c.now = now
	}
}

// WithRecorder reports cache events to r
func WithRecorder(r Recorder) Option {
	return func(c *DecisionCache) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the logger used for invalidation and sweep messages
func WithLogger(l *observability.Logger) Option {
	return func(c *DecisionCache) {
		if l != nil {
			c.logger = l
		}
	}
}
