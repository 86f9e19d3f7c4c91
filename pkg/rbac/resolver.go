package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/iflastandards/standards-authz/pkg/cache"
	"github.com/iflastandards/standards-authz/pkg/contextkeys"
	"github.com/iflastandards/standards-authz/pkg/identity"
	"github.com/iflastandards/standards-authz/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Resolution outcomes reported to the Observer
const (
	ResolutionCached    = "cached"
	ResolutionBuilt     = "built"
	ResolutionAnonymous = "anonymous"
	ResolutionError     = "error"
)

// Observer receives authorization telemetry. *observability.Metrics
// implements it.
type Observer interface {
	ObserveDecision(resource, action string, allowed bool, source string, d time.Duration)
	ObserveResolution(outcome string)
	ObserveMalformed(field string)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(string, string, bool, string, time.Duration) {}
func (nopObserver) ObserveResolution(string)                                    {}
func (nopObserver) ObserveMalformed(string)                                     {}

// Resolver turns the caller's identity into a RoleSet, caching the result
// per user. Role sets returned from the cache are shared and must not be
// modified.
type Resolver struct {
	source     identity.Source
	cache      *cache.DecisionCache
	roleSetTTL time.Duration
	observer   Observer
	logger     *observability.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithRoleSetTTL overrides the cache's role-set TTL
func WithRoleSetTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) { r.roleSetTTL = ttl }
}

// WithResolverObserver reports resolutions and malformed metadata
func WithResolverObserver(o Observer) ResolverOption {
	return func(r *Resolver) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithResolverLogger sets the logger used for malformed metadata warnings
func WithResolverLogger(l *observability.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver. c may be nil to disable caching.
func NewResolver(source identity.Source, c *cache.DecisionCache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:   source,
		cache:    c,
		observer: nopObserver{},
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithField("component", "rbac_resolver")
	return r
}

// Resolve returns the caller's role set, or nil when the request carries no
// identity. Identity provider failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context) (*RoleSet, error) {
	ctx, span := observability.Tracer().Start(ctx, "rbac.Resolve")
	defer span.End()

	if r.source == nil {
		return nil, ErrNoIdentitySource
	}

	ident, err := r.source.Current(ctx)
	if err != nil {
		r.observer.ObserveResolution(ResolutionError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity lookup failed")
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}
	if ident == nil || ident.ID == "" {
		r.observer.ObserveResolution(ResolutionAnonymous)
		return nil, nil
	}
	span.SetAttributes(attribute.String("authz.user_id", ident.ID))

	if r.cache != nil {
		if roles, ok := cache.GetAs[*RoleSet](r.cache, cache.RoleSetKey(ident.ID)); ok {
			r.observer.ObserveResolution(ResolutionCached)
			span.SetAttributes(attribute.Bool("authz.cached", true))
			return roles, nil
		}
	}

	logger := loggerFor(ctx, r.logger)
	roles := BuildRoleSet(ident, func(field, detail string) {
		r.observer.ObserveMalformed(field)
		logger.WithFields(map[string]interface{}{
			"user_id": ident.ID,
			"field":   field,
		}).Warn("skipping malformed role metadata: " + detail)
	})

	if r.cache != nil {
		r.cache.SetRoleSet(ident.ID, roles, r.roleSetTTL)
	}
	r.observer.ObserveResolution(ResolutionBuilt)
	span.SetAttributes(attribute.Bool("authz.cached", false))
	return roles, nil
}

// loggerFor prefers the request logger when one was attached
func loggerFor(ctx context.Context, fallback *observability.Logger) *observability.Logger {
	if _, ok := ctx.Value(contextkeys.LoggerKey).(*observability.Logger); ok {
		return observability.FromContext(ctx)
	}
	return fallback
}
