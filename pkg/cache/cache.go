package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/iflastandards/standards-authz/pkg/observability"
	"github.com/robfig/cron/v3"
)

type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
	hits      int64
	seq       uint64
	tags      tags
}

// DecisionCache is an in-memory TTL cache for role sets and permission
// decisions. All operations are serialized under one mutex.
type DecisionCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     *Config
	seq     uint64

	// resource TTLs as constructed, restored by Reset
	baseTTLs map[string]time.Duration

	hits      int64
	misses    int64
	evictions int64

	now      func() time.Time
	recorder Recorder
	logger   *observability.Logger
	janitor  *cron.Cron
}

// New creates a decision cache. A nil config means DefaultConfig. The
// background sweep starts immediately when cfg.SweepInterval > 0; call Close
// to stop it.
func New(cfg *Config, opts ...Option) (*DecisionCache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &DecisionCache{
		entries:  make(map[string]*entry),
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		recorder: nopRecorder{},
		logger:   observability.NopLogger(),
	}
	c.baseTTLs = copyTTLs(c.cfg.ResourceTTLs)
	for _, opt := range opts {
		opt(c)
	}

	if c.cfg.Enabled && c.cfg.SweepInterval > 0 {
		if err := c.startJanitor(c.cfg.SweepInterval); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Get returns the value for key. Expired entries are deleted and reported as
// a miss.
func (c *DecisionCache) Get(key string) (any, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		c.recorder.RecordMiss(parseTags(key).kind)
		return nil, false
	}

	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		c.recorder.RecordMiss(e.tags.kind)
		c.recorder.SetEntries(len(c.entries))
		return nil, false
	}

	e.hits++
	c.hits++
	c.recorder.RecordHit(e.tags.kind)
	return e.value, true
}

// GetAs is Get with a type assertion; a value of another type is a miss
func GetAs[T any](c *DecisionCache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Set stores value under key. TTL resolution order: ttl when > 0, else the
// resource type's TTL, else the default TTL. When the cache is full and key
// is new, one entry is evicted first. An empty key is ignored.
func (c *DecisionCache) Set(key string, value any, ttl time.Duration, resourceType string) {
	if !c.cfg.Enabled || key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	effective := c.ttlFor(ttl, resourceType)

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxSize {
		c.evictOne()
	}

	now := c.now()
	c.seq++
	c.entries[key] = &entry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(effective),
		seq:       c.seq,
		tags:      parseTags(key),
	}
	c.recorder.SetEntries(len(c.entries))
}

func (c *DecisionCache) ttlFor(ttl time.Duration, resourceType string) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if resourceType != "" {
		if rt, ok := c.cfg.ResourceTTLs[resourceType]; ok && rt > 0 {
			return rt
		}
	}
	return c.cfg.DefaultTTL
}

// evictOne removes the entry with the oldest creation time, ties broken by
// fewest hits and then by insertion order. Caller holds mu.
func (c *DecisionCache) evictOne() {
	var victimKey string
	var victim *entry
	for k, e := range c.entries {
		if victim == nil || older(e, victim) {
			victimKey, victim = k, e
		}
	}
	if victim == nil {
		return
	}
	delete(c.entries, victimKey)
	c.evictions++
	c.recorder.RecordEviction("capacity")
}

func older(a, b *entry) bool {
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.Before(b.createdAt)
	}
	if a.hits != b.hits {
		return a.hits < b.hits
	}
	return a.seq < b.seq
}

// Delete removes key and reports whether it was present
func (c *DecisionCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	c.recorder.SetEntries(len(c.entries))
	return ok
}

// Clear removes every entry and resets statistics
func (c *DecisionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.hits, c.misses, c.evictions = 0, 0, 0
	c.recorder.SetEntries(0)
}

// Reset returns the cache to its freshly constructed state: no entries,
// zeroed statistics and the resource TTLs it was created with
func (c *DecisionCache) Reset() {
	c.Clear()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.ResourceTTLs = copyTTLs(c.baseTTLs)
}

func copyTTLs(ttls map[string]time.Duration) map[string]time.Duration {
	out := make(map[string]time.Duration, len(ttls))
	for k, v := range ttls {
		out[k] = v
	}
	return out
}

// InvalidateUser removes every role-set and decision entry for userID and
// returns how many were removed
func (c *DecisionCache) InvalidateUser(userID string) int {
	if userID == "" {
		return 0
	}
	n := c.removeWhere(func(k string, e *entry) bool {
		return e.tags.matchesUser(k, userID)
	})
	if n > 0 {
		c.logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"removed": n,
		}).Debug("invalidated user cache entries")
	}
	return n
}

// InvalidateResource removes decision entries for resourceType, narrowed to
// entries whose attributes carry resourceID when it is non-empty
func (c *DecisionCache) InvalidateResource(resourceType, resourceID string) int {
	if resourceType == "" {
		return 0
	}
	n := c.removeWhere(func(k string, e *entry) bool {
		return e.tags.matchesResource(k, resourceType, resourceID)
	})
	if n > 0 {
		c.logger.WithFields(map[string]interface{}{
			"resource_type": resourceType,
			"resource_id":   resourceID,
			"removed":       n,
		}).Debug("invalidated resource cache entries")
	}
	return n
}

func (c *DecisionCache) removeWhere(match func(string, *entry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if match(k, e) {
			delete(c.entries, k)
			n++
		}
	}
	if n > 0 {
		c.recorder.SetEntries(len(c.entries))
	}
	return n
}

// Sweep removes all expired entries and returns how many were removed
func (c *DecisionCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			c.recorder.RecordEviction("expired")
			n++
		}
	}
	if n > 0 {
		c.recorder.SetEntries(len(c.entries))
	}
	return n
}

// Stats returns a statistics snapshot
func (c *DecisionCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *DecisionCache) statsLocked() Stats {
	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Len returns the number of stored entries, expired ones included
func (c *DecisionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SetResourceTTLs merges per-resource TTLs into the running configuration.
// Existing entries keep their expiry.
func (c *DecisionCache) SetResourceTTLs(ttls map[string]time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for rt, ttl := range ttls {
		if ttl > 0 {
			c.cfg.ResourceTTLs[rt] = ttl
		}
	}
}

// ResourceTTL reports the TTL Set would use for resourceType without an
// explicit TTL
func (c *DecisionCache) ResourceTTL(resourceType string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttlFor(0, resourceType)
}

// Export returns a snapshot of configuration, statistics and entries sorted
// by key
func (c *DecisionCache) Export() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	ttls := copyTTLs(c.cfg.ResourceTTLs)

	state := State{
		Enabled:      c.cfg.Enabled,
		MaxSize:      c.cfg.MaxSize,
		DefaultTTL:   c.cfg.DefaultTTL,
		ResourceTTLs: ttls,
		Stats:        c.statsLocked(),
		Entries:      make([]EntrySnapshot, 0, len(c.entries)),
	}
	for k, e := range c.entries {
		state.Entries = append(state.Entries, EntrySnapshot{
			Key:       k,
			Kind:      e.tags.kind,
			CreatedAt: e.createdAt,
			ExpiresAt: e.expiresAt,
			TTL:       e.expiresAt.Sub(e.createdAt),
			Hits:      e.hits,
		})
	}
	sort.Slice(state.Entries, func(i, j int) bool {
		return state.Entries[i].Key < state.Entries[j].Key
	})
	return state
}

// SetRoleSet caches a resolved role set. ttl 0 means the configured role-set TTL.
func (c *DecisionCache) SetRoleSet(userID string, roles any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.RoleSetTTL
	}
	c.Set(RoleSetKey(userID), roles, ttl, "")
}

// RoleSet returns a cached role set
func (c *DecisionCache) RoleSet(userID string) (any, bool) {
	return c.Get(RoleSetKey(userID))
}

// SetPermission caches a decision with the resource type's TTL
func (c *DecisionCache) SetPermission(userID, resourceType, action string, attrs map[string]string, allowed bool) {
	c.Set(PermissionKey(userID, resourceType, action, attrs), allowed, 0, resourceType)
}

// Permission returns a cached decision
func (c *DecisionCache) Permission(userID, resourceType, action string, attrs map[string]string) (allowed, ok bool) {
	return GetAs[bool](c, PermissionKey(userID, resourceType, action, attrs))
}

// Close stops the background sweep. The cache stays usable.
func (c *DecisionCache) Close() error {
	c.stopJanitor()
	return nil
}
