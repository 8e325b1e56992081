package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultCleanupInterval = 5 * time.Minute

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache - in-memory кеш ответов API с TTL.
// Параллельные промахи по одному ключу схлопываются в один вызов loader.
type Cache[V any] struct {
	mu      sync.RWMutex
	items   map[string]item[V]
	group   singleflight.Group
	now     func() time.Time
	stop    chan struct{}
	stopped bool

	// OnHit и OnMiss вызываются из GetOrLoad, если заданы
	OnHit  func()
	OnMiss func()

	// LoadTimeout bounds a shared load. Zero means the deadline of the caller
	// that started it, if any.
	LoadTimeout time.Duration
}

func New[V any]() *Cache[V] {
	return NewWithContext[V](context.Background(), defaultCleanupInterval)
}

// NewWithContext starts the expiry sweeper, which runs every interval until
// ctx is done or Stop is called.
func NewWithContext[V any](ctx context.Context, interval time.Duration) *Cache[V] {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	c := &Cache[V]{
		items: make(map[string]item[V]),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	go c.cleanup(ctx, interval)
	return c
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || c.now().After(it.expiresAt) {
		var zero V
		return zero, false
	}
	return it.value, true
}

func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = item[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// GetOrLoad returns the cached value or calls load once for all concurrent
// callers of the same key. Errors are not cached.
//
// The load runs detached from the caller's cancellation, so one caller
// giving up does not fail the others; each caller still returns its own
// ctx.Err() as soon as its ctx is done.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (V, error)) (V, error) {
	var zero V
	if v, ok := c.Get(key); ok {
		if c.OnHit != nil {
			c.OnHit()
		}
		return v, nil
	}
	if c.OnMiss != nil {
		c.OnMiss()
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := c.loadContext(ctx)
		defer cancel()

		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

func (c *Cache[V]) loadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.LoadTimeout > 0 {
		return context.WithTimeout(detached, c.LoadTimeout)
	}
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithCancel(detached)
}

func (c *Cache[V]) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stop)
	}
	c.mu.Unlock()
}

func (c *Cache[V]) cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, k)
		}
	}
}
