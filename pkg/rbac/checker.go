package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/iflastandards/standards-authz/pkg/audit"
	"github.com/iflastandards/standards-authz/pkg/cache"
	"github.com/iflastandards/standards-authz/pkg/contextkeys"
	"github.com/iflastandards/standards-authz/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Decision sources reported to the Observer
const (
	SourceCache     = "cache"
	SourceEvaluated = "evaluated"
)

// DefaultBatchConcurrency bounds CheckBatch
const DefaultBatchConcurrency = 8

// Decision is the outcome of a permission check
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	Grant     Grant     `json:"grant,omitempty"`
	Cached    bool      `json:"cached"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Checker makes cached permission decisions. Decisions are cached per user,
// resource type, action and attributes with the resource type's TTL.
type Checker struct {
	cache    *cache.DecisionCache
	audit    audit.Logger
	observer Observer
	logger   *observability.Logger
	now      func() time.Time
}

// CheckerOption configures a Checker
type CheckerOption func(*Checker)

// WithAudit records every decision in log
func WithAudit(log audit.Logger) CheckerOption {
	return func(c *Checker) {
		if log != nil {
			c.audit = log
		}
	}
}

// WithCheckerObserver reports decisions
func WithCheckerObserver(o Observer) CheckerOption {
	return func(c *Checker) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithCheckerLogger sets the logger for decision debug lines
func WithCheckerLogger(l *observability.Logger) CheckerOption {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChecker creates a checker. c may be nil to evaluate every request.
func NewChecker(c *cache.DecisionCache, opts ...CheckerOption) *Checker {
	ch := &Checker{
		cache:    c,
		audit:    audit.NopLogger{},
		observer: nopObserver{},
		logger:   observability.NopLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ch)
	}
	ch.logger = ch.logger.WithField("component", "rbac_checker")
	return ch
}

// Check decides whether roles may perform req. A nil role set is denied.
// An error is returned only for a request that was not built by a
// constructor or ParseRequest.
func (c *Checker) Check(ctx context.Context, roles *RoleSet, req Request) (Decision, error) {
	start := c.now()
	if !req.Resource().Allows(req.Action()) {
		return Decision{}, fmt.Errorf("%w: %s", ErrInvalidAction, req)
	}

	ctx, span := observability.Tracer().Start(ctx, "rbac.Check", trace.WithAttributes(
		attribute.String("authz.resource", string(req.Resource())),
		attribute.String("authz.action", string(req.Action())),
	))
	defer span.End()

	if roles == nil {
		d := Decision{Allowed: false, Reason: "not authenticated", Grant: GrantNone, CheckedAt: start}
		span.SetAttributes(attribute.Bool("authz.allowed", false))
		return d, nil
	}

	attrs := req.Attributes().Map()
	resource, action := string(req.Resource()), string(req.Action())

	if c.cache != nil {
		if allowed, ok := c.cache.Permission(roles.UserID, resource, action, attrs); ok {
			d := Decision{Allowed: allowed, Reason: "cached result", Cached: true, CheckedAt: start}
			c.record(ctx, roles, req, attrs, d, []RoleCheck{{
				Role: "cached", Type: "system", Matched: allowed, Details: "Result from cache",
			}}, start)
			span.SetAttributes(attribute.Bool("authz.allowed", allowed), attribute.Bool("authz.cached", true))
			return d, nil
		}
	}

	v := Explain(roles, req)
	if c.cache != nil {
		c.cache.SetPermission(roles.UserID, resource, action, attrs, v.Allowed)
	}

	d := Decision{Allowed: v.Allowed, Reason: v.Reason, Grant: v.Grant, CheckedAt: start}
	c.record(ctx, roles, req, attrs, d, v.Checks, start)
	span.SetAttributes(attribute.Bool("authz.allowed", v.Allowed), attribute.Bool("authz.cached", false))
	return d, nil
}

func (c *Checker) record(ctx context.Context, roles *RoleSet, req Request, attrs map[string]string, d Decision, checks []RoleCheck, start time.Time) {
	elapsed := c.now().Sub(start)

	source := SourceEvaluated
	if d.Cached {
		source = SourceCache
	}
	c.observer.ObserveDecision(string(req.Resource()), string(req.Action()), d.Allowed, source, elapsed)

	result := audit.ResultDenied
	if d.Allowed {
		result = audit.ResultAllowed
	}

	auditChecks := make([]audit.RoleCheck, len(checks))
	for i, rc := range checks {
		auditChecks[i] = audit.RoleCheck{Role: rc.Role, Type: rc.Type, Matched: rc.Matched, Details: rc.Details}
	}

	c.audit.Log(ctx, &audit.Decision{
		RequestID:     contextkeys.GetRequestID(ctx),
		UserID:        roles.UserID,
		Email:         roles.Email,
		Resource:      string(req.Resource()),
		Action:        string(req.Action()),
		Attributes:    attrs,
		Result:        result,
		Reason:        d.Reason,
		Grant:         string(d.Grant),
		Cached:        d.Cached,
		RoleChecks:    auditChecks,
		ExecutionTime: elapsed,
	})

	if !d.Allowed {
		loggerFor(ctx, c.logger).WithFields(map[string]interface{}{
			"resource": req.Resource(),
			"action":   req.Action(),
			"reason":   d.Reason,
			"cached":   d.Cached,
		}).Debug("permission denied")
	}
}

// CheckBatch checks every request for the same role set concurrently.
// Results are in request order; the first error cancels the rest.
func (c *Checker) CheckBatch(ctx context.Context, roles *RoleSet, reqs []Request) ([]Decision, error) {
	out := make([]Decision, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultBatchConcurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := c.Check(ctx, roles, req)
			if err != nil {
				return fmt.Errorf("check %d (%s): %w", i, req, err)
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Can is Check reduced to its boolean. Errors deny.
func (c *Checker) Can(ctx context.Context, roles *RoleSet, req Request) bool {
	d, err := c.Check(ctx, roles, req)
	return err == nil && d.Allowed
}
