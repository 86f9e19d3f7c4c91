package audit

import (
	"context"
	"sync"
	"time"

	"github.com/iflastandards/standards-authz/pkg/observability"
)

// DefaultMaxRecords bounds the in-memory log
const DefaultMaxRecords = 1000

// Logger records authorization decisions
type Logger interface {
	// Log records d. Implementations must not retain ctx.
	Log(ctx context.Context, d *Decision)

	// Search returns matching decisions, oldest first
	Search(filter Filter) []*Decision

	// Clear drops every retained decision
	Clear()
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Decision) {}
func (NopLogger) Search(Filter) []*Decision      { return []*Decision{} }
func (NopLogger) Clear()                         {}

// Config configures a MemoryLogger
type Config struct {
	MaxRecords int
	// Verbose also writes each decision to the structured log
	Verbose bool
}

// MemoryLogger keeps the most recent decisions in a ring buffer
type MemoryLogger struct {
	mu      sync.RWMutex
	records []*Decision
	start   int // index of the oldest record once the ring is full
	nextID  int64
	max     int
	verbose bool
	logger  *observability.Logger
	now     func() time.Time
}

// NewMemoryLogger creates a MemoryLogger. A nil logger disables verbose output.
func NewMemoryLogger(cfg Config, logger *observability.Logger) *MemoryLogger {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &MemoryLogger{
		records: make([]*Decision, 0, cfg.MaxRecords),
		max:     cfg.MaxRecords,
		verbose: cfg.Verbose,
		logger:  logger.WithField("component", "decision_audit"),
		now:     time.Now,
	}
}

// Log implements Logger. The oldest record is dropped once the buffer is full.
func (l *MemoryLogger) Log(_ context.Context, d *Decision) {
	if d == nil {
		return
	}

	l.mu.Lock()
	l.nextID++
	d.ID = l.nextID
	if d.Timestamp.IsZero() {
		d.Timestamp = l.now()
	}
	if len(l.records) < l.max {
		l.records = append(l.records, d)
	} else {
		l.records[l.start] = d
		l.start = (l.start + 1) % l.max
	}
	l.mu.Unlock()

	if l.verbose {
		l.logger.WithFields(map[string]interface{}{
			"user_id":    d.UserID,
			"resource":   d.Resource,
			"action":     d.Action,
			"result":     d.Result,
			"reason":     d.Reason,
			"cached":     d.Cached,
			"request_id": d.RequestID,
		}).Info("authorization decision")
	}
}

// ordered returns the records oldest first. Caller holds the lock.
func (l *MemoryLogger) ordered() []*Decision {
	out := make([]*Decision, 0, len(l.records))
	out = append(out, l.records[l.start:]...)
	out = append(out, l.records[:l.start]...)
	return out
}

// Search implements Logger
func (l *MemoryLogger) Search(filter Filter) []*Decision {
	l.mu.RLock()
	all := l.ordered()
	l.mu.RUnlock()

	out := make([]*Decision, 0, len(all))
	for _, d := range all {
		if filter.matches(d) {
			out = append(out, d)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// Recent returns the last n decisions, oldest first
func (l *MemoryLogger) Recent(n int) []*Decision {
	return l.Search(Filter{Limit: n})
}

// ByUser returns every retained decision for userID
func (l *MemoryLogger) ByUser(userID string) []*Decision {
	return l.Search(Filter{UserID: userID})
}

// ByResource returns every retained decision for a resource type
func (l *MemoryLogger) ByResource(resource string) []*Decision {
	return l.Search(Filter{Resource: resource})
}

// Clear implements Logger
func (l *MemoryLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = l.records[:0]
	l.start = 0
}

// Len returns the number of retained decisions
func (l *MemoryLogger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Stats summarizes the retained decisions
func (l *MemoryLogger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Total: len(l.records), ByResource: make(map[string]int)}
	for _, d := range l.records {
		if d.Result == ResultAllowed {
			s.Allowed++
		} else {
			s.Denied++
		}
		if d.Cached {
			s.Cached++
		}
		s.ByResource[d.Resource]++
	}
	return s
}
