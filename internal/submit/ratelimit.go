package submit

import (
	"sync"
	"time"
)

const (
	DefaultMaxPerWindow = 8
	DefaultWindow       = 60 * time.Second
	DefaultMaxTracked   = 10000
)

// Limiter is a sliding window rate limiter keyed by caller address. State is
// per process.
type Limiter struct {
	max        int
	window     time.Duration
	maxTracked int
	now        func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewLimiter(max int, window time.Duration, maxTracked int) *Limiter {
	if max <= 0 {
		max = DefaultMaxPerWindow
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if maxTracked <= 0 {
		maxTracked = DefaultMaxTracked
	}
	return &Limiter{
		max:        max,
		window:     window,
		maxTracked: maxTracked,
		now:        time.Now,
		hits:       make(map[string][]time.Time),
	}
}

// Allow records an attempt for addr and reports whether it is within the limit.
// Rejected attempts are not recorded.
func (l *Limiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	recent := keepAfter(l.hits[addr], cutoff)
	if len(recent) >= l.max {
		l.hits[addr] = recent
		return false
	}
	l.hits[addr] = append(recent, now)

	if len(l.hits) > l.maxTracked {
		l.pruneLocked(cutoff)
	}
	return true
}

// Tracked is the number of addresses currently held.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

func (l *Limiter) pruneLocked(cutoff time.Time) {
	for addr, ts := range l.hits {
		recent := keepAfter(ts, cutoff)
		if len(recent) == 0 {
			delete(l.hits, addr)
			continue
		}
		l.hits[addr] = recent
	}
}

func keepAfter(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
