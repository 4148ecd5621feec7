package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is a token bucket per key. A bucket holds up to limit tokens and refills
// at limit tokens per window.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory creates an in-process limiter
func NewMemory(limit int, window time.Duration) (*Memory, error) {
	if err := validate(limit, window); err != nil {
		return nil, err
	}
	return &Memory{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}, nil
}

// Allow takes one token from key's bucket
func (m *Memory) Allow(ctx context.Context, key string) (*Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: m.limit, lastRefill: now}
		m.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		refill := int(float64(m.limit) * elapsed.Seconds() / m.window.Seconds())
		if refill > 0 {
			b.tokens = min(m.limit, b.tokens+refill)
			b.lastRefill = now
		}
	}

	d := &Decision{Limit: m.limit, ResetAt: b.lastRefill.Add(m.window)}
	if b.tokens > 0 {
		b.tokens--
		d.Allowed = true
	}
	d.Remaining = b.tokens
	return d, nil
}

// Sweep drops buckets idle for two windows; they would be full again anyway
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for key, b := range m.buckets {
		if now.Sub(b.lastRefill) > 2*m.window {
			delete(m.buckets, key)
			dropped++
		}
	}
	return dropped
}

// Run sweeps idle buckets every interval until ctx is done
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
