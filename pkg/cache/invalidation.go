package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/iflastandards/standards-authz/pkg/observability"
)

// Invalidation scopes
const (
	ScopeUser     = "user"
	ScopeResource = "resource"
)

// DefaultChannel is the Redis pub/sub channel peers share
const DefaultChannel = "authz:invalidations"

// Invalidator removes cached role sets and decisions when roles or resources
// change
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
	InvalidateResource(ctx context.Context, resourceType, resourceID string) error
}

// ObserveFunc is told about every applied invalidation. origin is "local" or
// "remote".
type ObserveFunc func(scope, origin string)

// LocalInvalidator applies invalidations to a single process
type LocalInvalidator struct {
	Cache   *DecisionCache
	Observe ObserveFunc
}

// InvalidateUser implements Invalidator
func (l *LocalInvalidator) InvalidateUser(_ context.Context, userID string) error {
	l.Cache.InvalidateUser(userID)
	if l.Observe != nil {
		l.Observe(ScopeUser, "local")
	}
	return nil
}

// InvalidateResource implements Invalidator
func (l *LocalInvalidator) InvalidateResource(_ context.Context, resourceType, resourceID string) error {
	l.Cache.InvalidateResource(resourceType, resourceID)
	if l.Observe != nil {
		l.Observe(ScopeResource, "local")
	}
	return nil
}

type invalidationMessage struct {
	Origin       string `json:"origin"`
	Scope        string `json:"scope"`
	UserID       string `json:"userId,omitempty"`
	ResourceType string `json:"resourceType,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`
}

// BusConfig configures a Broadcaster
type BusConfig struct {
	Channel    string
	InstanceID string // generated when empty
}

// Broadcaster applies invalidations locally and publishes them on Redis so
// every peer drops the same entries. Messages from this instance are ignored
// on receipt.
type Broadcaster struct {
	client     *redis.Client
	cache      *DecisionCache
	channel    string
	instanceID string
	logger     *observability.Logger
	observe    ObserveFunc

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
	closed bool
}

// NewBroadcaster creates an invalidation bus over client
func NewBroadcaster(client *redis.Client, c *DecisionCache, cfg BusConfig, logger *observability.Logger, observe ObserveFunc) *Broadcaster {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Broadcaster{
		client:     client,
		cache:      c,
		channel:    cfg.Channel,
		instanceID: cfg.InstanceID,
		logger:     logger.WithField("component", "invalidation_bus"),
		observe:    observe,
	}
}

// InstanceID identifies this process on the bus
func (b *Broadcaster) InstanceID() string {
	return b.instanceID
}

// Subscribe starts consuming peer invalidations. It returns once Redis has
// confirmed the subscription.
func (b *Broadcaster) Subscribe(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if b.pubsub != nil {
		return nil
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	b.pubsub = pubsub
	b.done = make(chan struct{})
	go b.consume(pubsub.Channel(), b.done)

	b.logger.WithField("channel", b.channel).Info("subscribed to cache invalidations")
	return nil
}

func (b *Broadcaster) consume(ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range ch {
		b.handle(msg.Payload)
	}
}

func (b *Broadcaster) handle(payload string) {
	defer observability.RecoverPanic(b.logger, "invalidation message")

	var m invalidationMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		b.logger.WithError(err).Warn("dropping malformed invalidation message")
		return
	}
	if m.Origin == b.instanceID {
		return
	}

	switch m.Scope {
	case ScopeUser:
		b.cache.InvalidateUser(m.UserID)
	case ScopeResource:
		b.cache.InvalidateResource(m.ResourceType, m.ResourceID)
	default:
		b.logger.WithField("scope", m.Scope).Warn("unknown invalidation scope")
		return
	}
	if b.observe != nil {
		b.observe(m.Scope, "remote")
	}
}

// InvalidateUser implements Invalidator. The local cache is always cleared;
// a publish failure is returned so the caller can report partial success.
func (b *Broadcaster) InvalidateUser(ctx context.Context, userID string) error {
	b.cache.InvalidateUser(userID)
	if b.observe != nil {
		b.observe(ScopeUser, "local")
	}
	return b.publish(ctx, invalidationMessage{Scope: ScopeUser, UserID: userID})
}

// InvalidateResource implements Invalidator
func (b *Broadcaster) InvalidateResource(ctx context.Context, resourceType, resourceID string) error {
	b.cache.InvalidateResource(resourceType, resourceID)
	if b.observe != nil {
		b.observe(ScopeResource, "local")
	}
	return b.publish(ctx, invalidationMessage{Scope: ScopeResource, ResourceType: resourceType, ResourceID: resourceID})
}

func (b *Broadcaster) publish(ctx context.Context, m invalidationMessage) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	m.Origin = b.instanceID
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode invalidation: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Close unsubscribes and waits for the consumer goroutine to exit. The Redis
// client is owned by the caller and stays open.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pubsub, done := b.pubsub, b.done
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
