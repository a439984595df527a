// Package ratelimit tracks per-route rate limit buckets from the
// X-RateLimit-* response headers and makes request workers wait out
// exhausted buckets before dispatching.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Bucket is the point-in-time rate limit state of one route bucket, as last
// reported by the server.
type Bucket struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Store holds bucket state. Implementations must be safe for concurrent
// use; the Redis store lets multiple processes share one budget.
type Store interface {
	// Take reserves one slot under key. It returns 0 when the caller may
	// proceed, or how long to wait before trying again.
	Take(ctx context.Context, key string) (time.Duration, error)

	// Update records the authoritative state reported by the server.
	Update(ctx context.Context, key string, b Bucket) error
}

// Limiter coordinates request workers against a Store.
type Limiter struct {
	store Store
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store}
}

// Wait blocks until the bucket for key has capacity or ctx is done. Store
// failures let the request through rather than blocking callers; the server
// still enforces the real limit.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		wait, err := l.store.Take(ctx, key)
		if err != nil {
			slog.Warn("ratelimit: store unavailable, proceeding", "bucket", key, "error", err)
			return nil
		}
		if wait <= 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Observe ingests the rate limit headers of a completed response.
// X-RateLimit-Reset is unix seconds, per the server convention.
func (l *Limiter) Observe(ctx context.Context, key string, header http.Header) {
	if header == nil {
		return
	}
	remaining := header.Get("X-RateLimit-Remaining")
	limit := header.Get("X-RateLimit-Limit")
	reset := header.Get("X-RateLimit-Reset")
	if remaining == "" && limit == "" && reset == "" {
		return
	}

	var b Bucket
	b.Remaining, _ = strconv.Atoi(remaining)
	b.Limit, _ = strconv.Atoi(limit)
	if resetUnix, err := strconv.ParseInt(reset, 10, 64); err == nil {
		b.ResetAt = time.Unix(resetUnix, 0)
	}

	if err := l.store.Update(ctx, key, b); err != nil {
		slog.Warn("ratelimit: bucket update failed", "bucket", key, "error", err)
	}
}

// MemoryStore keeps bucket state in a process-local map.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*Bucket)}
}

func (s *MemoryStore) Take(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		// Unknown bucket: allow; the first response will seed it.
		return 0, nil
	}

	now := time.Now()
	if !now.Before(b.ResetAt) {
		delete(s.buckets, key)
		return 0, nil
	}
	if b.Remaining > 0 {
		b.Remaining--
		return 0, nil
	}
	return b.ResetAt.Sub(now), nil
}

func (s *MemoryStore) Update(_ context.Context, key string, b Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[key] = &b
	return nil
}
