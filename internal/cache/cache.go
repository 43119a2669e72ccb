// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache fronts expensive calls (retrieval queries, web search,
// model completions) with a TTL key-value store. Backends are pluggable:
// an in-process LRU or a networked redis instance. The cache is a
// performance layer only; backend failure degrades to direct computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Backend is the storage contract shared by the memory and redis
// implementations. Get treats expired entries as absent.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Fingerprint derives a deterministic cache key from request parameters.
func Fingerprint(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h[:])
}

// Cache wraps a Backend with compute-through semantics and single-flight
// deduplication of concurrent in-process computations.
type Cache struct {
	backend Backend
	logger  *zap.Logger

	hits   Counter
	misses Counter

	mu       sync.Mutex
	inflight map[string]*call
}

// Counter is the slice of prometheus.Counter the cache needs.
type Counter interface{ Inc() }

type call struct {
	done  chan struct{}
	value []byte
	err   error
}

// New wraps backend. A nil logger is replaced with a no-op logger.
func New(backend Backend, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		backend:  backend,
		logger:   logger,
		inflight: make(map[string]*call),
	}
}

// Instrument records hits and misses on the given counters. Call before
// the cache is shared; not synchronized with readers.
func (c *Cache) Instrument(hits, misses Counter) {
	c.hits = hits
	c.misses = misses
}

// Get returns the cached value for key, or absent on miss, expiry, or
// backend failure. Backend errors are logged, never propagated: a broken
// cache must look like an empty cache.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed, treating as miss", zap.Error(err))
		ok = false
	}
	if ok {
		if c.hits != nil {
			c.hits.Inc()
		}
		return v, true
	}
	if c.misses != nil {
		c.misses.Inc()
	}
	return nil, false
}

// Set stores value under key for ttl. Backend failure is logged and
// swallowed; writes are last-writer-wins.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache set failed", zap.Error(err))
	}
}

// GetOrCompute returns the cached value for key, computing and storing it
// on a miss. Concurrent in-process callers for the same key share one
// computation. With the redis backend two processes may still race and
// compute twice; that is accepted, the second write wins.
//
// A compute error is returned to every waiting caller and nothing is
// cached. The exception is cancellation: the in-flight computation runs
// on its initiator's context, and a waiter whose own context is still
// live must not inherit the initiator's cancellation. Such a waiter
// starts over and computes the value itself.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	for {
		if v, ok := c.Get(ctx, key); ok {
			return v, nil
		}

		c.mu.Lock()
		if cl, ok := c.inflight[key]; ok {
			c.mu.Unlock()
			select {
			case <-cl.done:
				if isContextError(cl.err) && ctx.Err() == nil {
					continue
				}
				return cl.value, cl.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		cl := &call{done: make(chan struct{})}
		c.inflight[key] = cl
		c.mu.Unlock()

		cl.value, cl.err = compute(ctx)
		if cl.err == nil {
			c.Set(ctx, key, cl.value, ttl)
		}

		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		close(cl.done)

		return cl.value, cl.err
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
