// Package ratelimiter throttles HTTP requests with token buckets from
// golang.org/x/time/rate.
//
// Two limiters are provided: a single shared bucket (RateLimiter) and one
// bucket per client key (PerClient), typically the remote address.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a single token bucket.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter.
//
// Parameters:
//   - requestsPerSecond: Sustained rate. Zero disables limiting.
//   - burst: Bucket capacity. Zero means requestsPerSecond.
func New(requestsPerSecond, burst uint) *RateLimiter {
	return &RateLimiter{limiter: newLimiter(requestsPerSecond, burst)}
}

func newLimiter(requestsPerSecond, burst uint) *rate.Limiter {
	if requestsPerSecond == 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst == 0 {
		burst = requestsPerSecond
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))
}

// Allow consumes a token if one is available and reports whether it did.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the number of tokens currently in the bucket.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

// Unlimited reports whether the limiter lets everything through.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// PerClient keeps one bucket per client key. Buckets idle for longer than
// the idle timeout are dropped on the next Sweep.
//
// Thread safety:
// All methods are safe for concurrent use.
type PerClient struct {
	rps   uint
	burst uint
	idle  time.Duration

	mu      sync.Mutex
	clients map[string]*client
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewPerClient creates a per-client limiter. An idle timeout of zero
// defaults to 5 minutes.
func NewPerClient(requestsPerSecond, burst uint, idle time.Duration) *PerClient {
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	return &PerClient{
		rps:     requestsPerSecond,
		burst:   burst,
		idle:    idle,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

// Allow consumes a token from key's bucket, creating the bucket on first use.
func (p *PerClient) Allow(key string) bool {
	if p.rps == 0 {
		return true
	}

	p.mu.Lock()
	c, ok := p.clients[key]
	if !ok {
		c = &client{limiter: newLimiter(p.rps, p.burst)}
		p.clients[key] = c
	}
	c.lastSeen = p.now()
	p.mu.Unlock()

	return c.limiter.Allow()
}

// Sweep drops buckets that have been idle longer than the idle timeout and
// returns how many were dropped.
func (p *PerClient) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-p.idle)
	dropped := 0
	for key, c := range p.clients {
		if c.lastSeen.Before(cutoff) {
			delete(p.clients, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked clients.
func (p *PerClient) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Run sweeps idle buckets every idle timeout until ctx is done.
func (p *PerClient) Run(ctx context.Context) {
	ticker := time.NewTicker(p.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
