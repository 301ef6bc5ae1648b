// Package cache memoizes scoring results, including deliberate misses, with
// per-entry TTLs, a capacity bound and an optional shared remote tier.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Options configures a ResultCache.
type Options struct {
	MaxEntries      int
	TTL             time.Duration
	PopularTTL      time.Duration
	NegativeCaching bool

	// Remote is an optional second tier shared between processes.
	Remote RemoteStore
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Entry is one cached value. Negative marks a cached "no match".
type Entry[V any] struct {
	Value     V             `json:"value"`
	Negative  bool          `json:"negative"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e Entry[V]) Expired(now time.Time) bool {
	return e.TTL > 0 && !now.Before(e.CreatedAt.Add(e.TTL))
}

// Stats are aggregate counters; cache internals are not exposed otherwise.
type Stats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// ResultCache is a bounded LRU of entries with lazy TTL expiry. It is safe
// for concurrent use.
type ResultCache[V any] struct {
	entries *lru.Cache[string, Entry[V]]
	opts    Options
	log     zerolog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache. MaxEntries must be positive.
func New[V any](opts Options) (*ResultCache[V], error) {
	if opts.MaxEntries <= 0 {
		return nil, fmt.Errorf("cache: max entries must be positive, got %d", opts.MaxEntries)
	}
	if opts.PopularTTL <= 0 {
		opts.PopularTTL = opts.TTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	entries, err := lru.New[string, Entry[V]](opts.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("cache: create lru: %w", err)
	}
	return &ResultCache[V]{
		entries: entries,
		opts:    opts,
		log:     logger.Component("cache"),
	}, nil
}

// Get returns the live entry for key. Expired entries are removed and
// reported as absent. Remote failures are logged and count as a miss.
func (c *ResultCache[V]) Get(ctx context.Context, key string) (Entry[V], bool) {
	return c.GetFunc(ctx, key, nil)
}

// GetFunc is Get for callers that store several results under one key. The
// live entry is returned whenever it exists, but it only counts as a hit when
// usable accepts it. A nil usable accepts every entry.
func (c *ResultCache[V]) GetFunc(ctx context.Context, key string, usable func(Entry[V]) bool) (Entry[V], bool) {
	e, ok := c.lookup(ctx, key)
	if ok && (usable == nil || usable(e)) {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

func (c *ResultCache[V]) lookup(ctx context.Context, key string) (Entry[V], bool) {
	now := c.opts.Now()
	if e, ok := c.entries.Get(key); ok {
		if !e.Expired(now) {
			return e, true
		}
		c.entries.Remove(key)
	}

	if e, ok := c.getRemote(ctx, key, now); ok {
		c.entries.Add(key, e)
		return e, true
	}

	var zero Entry[V]
	return zero, false
}

// Set stores value under key. A negative value is dropped when negative
// caching is disabled; popular keys get the longer TTL. Set reports whether
// the value was stored.
func (c *ResultCache[V]) Set(ctx context.Context, key string, value V, negative, popular bool) bool {
	if negative && !c.opts.NegativeCaching {
		return false
	}
	ttl := c.opts.TTL
	if popular {
		ttl = c.opts.PopularTTL
	}
	e := Entry[V]{Value: value, Negative: negative, CreatedAt: c.opts.Now(), TTL: ttl}
	c.entries.Add(key, e)
	c.setRemote(ctx, key, e)
	return true
}

// SweepExpired removes every expired entry and returns how many were removed.
func (c *ResultCache[V]) SweepExpired() int {
	now := c.opts.Now()
	removed := 0
	for _, key := range c.entries.Keys() {
		if e, ok := c.entries.Peek(key); ok && e.Expired(now) {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// Purge drops every local entry and resets the counters.
func (c *ResultCache[V]) Purge() {
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns the current size and hit counters.
func (c *ResultCache[V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{Size: c.entries.Len(), Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

func (c *ResultCache[V]) getRemote(ctx context.Context, key string, now time.Time) (Entry[V], bool) {
	var e Entry[V]
	if c.opts.Remote == nil {
		return e, false
	}
	data, ok, err := c.opts.Remote.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("remote cache read failed, computing instead")
		return e, false
	}
	if !ok {
		return e, false
	}
	if err := json.Unmarshal(data, &e); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable remote cache entry")
		return e, false
	}
	if e.Expired(now) {
		return e, false
	}
	return e, true
}

func (c *ResultCache[V]) setRemote(ctx context.Context, key string, e Entry[V]) {
	if c.opts.Remote == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("remote cache encode failed")
		return
	}
	if err := c.opts.Remote.Set(ctx, key, data, e.TTL); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("remote cache write failed")
	}
}
