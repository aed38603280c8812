// Package ratelimit implements per-source-address admission control for
// the transport listener (spec §4.3). golang.org/x/time/rate is an
// indirect dependency in the teacher's go.mod (pulled in transitively);
// this package promotes it to direct use for connection admission, the
// one domain component the spec names for rate limiting.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter admits or refuses connection attempts per source address. Each
// address gets its own token bucket; a sweep goroutine evicts buckets
// that have gone idle so memory doesn't grow without bound across a long
// server lifetime.
type Limiter struct {
	mu         sync.Mutex
	limiters   map[string]*entry
	rps        rate.Limit
	burst      int
	idleExpiry time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a Limiter allowing rps events per second per address, with
// burst capacity burst. idleExpiry bounds how long an address's bucket is
// retained without activity before Sweep reclaims it.
func New(rps float64, burst int, idleExpiry time.Duration) *Limiter {
	return &Limiter{
		limiters:   make(map[string]*entry),
		rps:        rate.Limit(rps),
		burst:      burst,
		idleExpiry: idleExpiry,
	}
}

// Allow reports whether address is currently under quota, consuming a
// token if so.
func (l *Limiter) Allow(address string) bool {
	l.mu.Lock()
	e, ok := l.limiters[address]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[address] = e
	}
	e.lastSeen = time.Now()
	lim := e.limiter
	l.mu.Unlock()
	return lim.Allow()
}

// Sweep removes buckets idle longer than idleExpiry. Intended to be
// called periodically from a cooperative background task; it returns the
// number of entries reclaimed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	reclaimed := 0
	for addr, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idleExpiry {
			delete(l.limiters, addr)
			reclaimed++
		}
	}
	return reclaimed
}

// Run starts a sweep loop on the given cadence until ctx is canceled.
func (l *Limiter) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			l.Sweep(t)
		}
	}
}
