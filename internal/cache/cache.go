// Package cache is a keyed in-memory cache with per-entry TTL and
// de-duplication of concurrent fetches for the same key.
package cache

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e entry[V]) fresh(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// Fetcher loads the value for a key on a cache miss.
type Fetcher[V any] func(ctx context.Context) (V, error)

// Cache maps string keys to values of type V. The zero value is not usable;
// build one with New.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	flights singleflight.Group

	defaultTTL time.Duration
	now        func() time.Time
	logger     *log.Logger
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *log.Logger
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New returns an empty cache. defaultTTL applies to values stored by CachedRequest.
func New[V any](defaultTTL time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now, logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
		now:        o.now,
		logger:     o.logger,
	}
}

// Get returns the value stored under key if it has not expired. Expired
// entries are evicted on the way out.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !e.fresh(c.now()) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// Invalidate removes key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateByPrefix removes every key starting with prefix and reports how
// many entries were dropped.
func (c *Cache[V]) InvalidateByPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CachedRequest returns the cached value for key or fetches it. Concurrent
// callers asking for the same key share a single fetch and its result. Only
// successful results are cached; a failed fetch reaches every waiter and the
// next call fetches again.
//
// A panicking fetch is reported to every waiter as an error.
// A caller whose ctx ends stops waiting; the fetch itself keeps running for
// the remaining waiters.
func (c *Cache[V]) CachedRequest(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.flights.DoChan(key, func() (val any, err error) {
		defer func() {
			if r := recover(); r != nil {
				val, err = nil, fmt.Errorf("fetch %q panicked: %v", key, r)
			}
		}()
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.Set(key, v, c.defaultTTL)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Sweep evicts every expired entry and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for key, e := range c.entries {
		if !e.fresh(now) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Schedule registers a periodic Sweep on the cron scheduler using spec, for
// example "@every 1m".
func (c *Cache[V]) Schedule(scheduler *cron.Cron, name, spec string) (cron.EntryID, error) {
	return scheduler.AddFunc(spec, func() {
		if n := c.Sweep(); n > 0 {
			c.logger.Printf("cache %s: swept %d expired entries", name, n)
		}
	})
}
