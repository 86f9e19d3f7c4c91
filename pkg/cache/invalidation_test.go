package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observed struct {
	mu     sync.Mutex
	events []string
}

func (o *observed) fn(scope, origin string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, scope+"/"+origin)
}

func (o *observed) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func newPeer(t *testing.T, mr *miniredis.Miniredis, obs *observed) (*DecisionCache, *Broadcaster) {
	t.Helper()
	c, _ := newTestCache(t, 100)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	b := NewBroadcaster(client, c, BusConfig{Channel: "test:invalidations"}, nil, obs.fn)
	require.NoError(t, b.Subscribe(context.Background()))
	t.Cleanup(func() { b.Close() })
	return c, b
}

func TestBroadcaster_PropagatesUserInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	obsA, obsB := &observed{}, &observed{}
	cacheA, busA := newPeer(t, mr, obsA)
	cacheB, _ := newPeer(t, mr, obsB)

	for _, c := range []*DecisionCache{cacheA, cacheB} {
		c.SetRoleSet("u1", "roles", 0)
		c.SetRoleSet("u2", "roles", 0)
	}

	require.NoError(t, busA.InvalidateUser(context.Background(), "u1"))

	_, ok := cacheA.RoleSet("u1")
	assert.False(t, ok, "local cache cleared synchronously")

	require.Eventually(t, func() bool {
		_, ok := cacheB.RoleSet("u1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	_, ok = cacheB.RoleSet("u2")
	assert.True(t, ok)

	assert.Equal(t, []string{"user/local"}, obsA.list(), "own message is ignored")
	assert.Equal(t, []string{"user/remote"}, obsB.list())
}

func TestBroadcaster_PropagatesResourceInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	_, busA := newPeer(t, mr, &observed{})
	cacheB, _ := newPeer(t, mr, &observed{})

	cacheB.SetPermission("u1", "namespace", "update", map[string]string{"namespaceId": "isbd"}, true)
	cacheB.SetPermission("u1", "namespace", "update", map[string]string{"namespaceId": "lrm"}, true)

	require.NoError(t, busA.InvalidateResource(context.Background(), "namespace", "isbd"))

	require.Eventually(t, func() bool { return cacheB.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, ok := cacheB.Permission("u1", "namespace", "update", map[string]string{"namespaceId": "lrm"})
	assert.True(t, ok)
}

func TestBroadcaster_IgnoresMalformedMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	obs := &observed{}
	cacheB, _ := newPeer(t, mr, obs)
	cacheB.SetRoleSet("u1", "roles", 0)

	mr.Publish("test:invalidations", "not json")
	mr.Publish("test:invalidations", `{"origin":"other","scope":"bogus"}`)
	mr.Publish("test:invalidations", `{"origin":"other","scope":"user","userId":"u1"}`)

	require.Eventually(t, func() bool { return cacheB.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"user/remote"}, obs.list())
}

func TestBroadcaster_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	c, _ := newTestCache(t, 10)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := NewBroadcaster(client, c, BusConfig{}, nil, nil)
	assert.NotEmpty(t, b.InstanceID())
	require.NoError(t, b.Subscribe(context.Background()))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Subscribe(context.Background()), ErrBusClosed)
	assert.ErrorIs(t, b.InvalidateUser(context.Background(), "u1"), ErrBusClosed)
}

func TestBroadcaster_PublishFailureStillClearsLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	c, _ := newTestCache(t, 10)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	b := NewBroadcaster(client, c, BusConfig{}, nil, nil)
	c.SetRoleSet("u1", "roles", 0)
	mr.Close()

	assert.Error(t, b.InvalidateUser(context.Background(), "u1"))
	_, ok := c.RoleSet("u1")
	assert.False(t, ok)
}

func TestLocalInvalidator(t *testing.T) {
	c, _ := newTestCache(t, 10)
	obs := &observed{}
	inv := &LocalInvalidator{Cache: c, Observe: obs.fn}

	c.SetRoleSet("u1", "roles", 0)
	c.SetPermission("u1", "namespace", "read", map[string]string{"namespaceId": "isbd"}, true)

	require.NoError(t, inv.InvalidateResource(context.Background(), "namespace", "isbd"))
	require.NoError(t, inv.InvalidateUser(context.Background(), "u1"))

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, []string{"resource/local", "user/local"}, obs.list())
}
