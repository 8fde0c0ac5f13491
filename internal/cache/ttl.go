// Package cache holds the process-wide result caches of the API server.
package cache

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[T any] struct {
	payload T
	stored  time.Time
}

// TTL is a keyed cache whose entries are valid while now-stored < ttl.
// GetOrCompute holds one critical section per key: concurrent misses on a key run
// the loader once and share its result, while misses on other keys load in
// parallel. The entry map itself is only locked for lookups and stores.
type TTL[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[T]
	group   singleflight.Group
	// gen counts invalidations; a load started before one is never stored.
	gen uint64
}

// NewTTL creates a cache. A nil clock means time.Now.
func NewTTL[T any](ttl time.Duration, now func() time.Time) *TTL[T] {
	if now == nil {
		now = time.Now
	}
	return &TTL[T]{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry[T]),
	}
}

func (c *TTL[T]) fresh(e entry[T]) bool {
	return c.now().Sub(e.stored) < c.ttl
}

// Get returns a fresh entry.
func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.fresh(e) {
		var zero T
		return zero, false
	}
	return e.payload, true
}

// Put stores payload stamped with the current clock.
func (c *TTL[T]) Put(key string, payload T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{payload: payload, stored: c.now()}
}

// GetOrCompute returns the fresh entry for key or runs load and caches its result.
// Errors are not cached. The bool reports a cache hit.
func (c *TTL[T]) GetOrCompute(key string, load func() (T, error)) (T, bool, error) {
	return c.GetOrComputeIf(key, func() (T, bool, error) {
		v, err := load()
		return v, true, err
	})
}

// GetOrComputeIf is GetOrCompute where load also reports whether its result may be
// stored. A result that is not stored is still returned to every waiting caller.
func (c *TTL[T]) GetOrComputeIf(key string, load func() (T, bool, error)) (T, bool, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.fresh(e) {
		c.mu.Unlock()
		return e.payload, true, nil
	}
	gen := c.gen
	c.mu.Unlock()

	// Callers arriving after an Invalidate must not join a flight started before it.
	flight := strconv.FormatUint(gen, 10) + "|" + key
	v, err, _ := c.group.Do(flight, func() (interface{}, error) {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && c.fresh(e) && c.gen == gen {
			c.mu.Unlock()
			return e.payload, nil
		}
		c.mu.Unlock()

		v, store, err := load()
		if err != nil {
			return nil, err
		}
		if store {
			c.mu.Lock()
			if c.gen == gen {
				c.entries[key] = entry[T]{payload: v, stored: c.now()}
			}
			c.mu.Unlock()
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	out, _ := v.(T)
	return out, false, nil
}

// Age returns how long ago key was stored, if present (fresh or not).
func (c *TTL[T]) Age(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return c.now().Sub(e.stored), true
}

// Len counts stored entries, expired ones included.
func (c *TTL[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate drops every entry. Loads already in flight return to their callers
// but are not stored.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.gen++
}
