// Package ratelimit bounds how many audit requests a client may issue per
// trailing time window. State is in-memory and per process.
package ratelimit

import (
	"sync"
	"time"
)

const cleanupInterval = 5 * time.Minute

type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// Limiter implements sliding-window counting per client identity. The client
// map is guarded by a read-write lock; each client's window has its own
// mutex so concurrent clients never contend on one lock.
type Limiter struct {
	mu          sync.RWMutex
	clients     map[string]*window
	limit       int
	span        time.Duration
	lastCleanup time.Time

	now func() time.Time // overridable in tests
}

// New creates a limiter allowing limit requests per span. A non-positive
// limit disables limiting.
func New(limit int, span time.Duration) *Limiter {
	return &Limiter{
		clients: make(map[string]*window),
		limit:   limit,
		span:    span,
		now:     time.Now,
	}
}

// Allow records and permits a request for the client unless its window is
// full. On denial it returns how long the client should wait before the
// oldest recorded request leaves the window.
func (l *Limiter) Allow(clientID string) (bool, time.Duration) {
	if l.limit <= 0 {
		return true, 0
	}
	now := l.now()
	l.maybeCleanup(now)

	w := l.window(clientID)
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-l.span)
	fresh := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			fresh = append(fresh, ts)
		}
	}
	w.stamps = fresh

	if len(w.stamps) >= l.limit {
		retryAfter := w.stamps[0].Add(l.span).Sub(now)
		return false, retryAfter
	}
	w.stamps = append(w.stamps, now)
	return true, 0
}

func (l *Limiter) window(clientID string) *window {
	l.mu.RLock()
	w, ok := l.clients[clientID]
	l.mu.RUnlock()
	if ok {
		return w
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.clients[clientID]; ok {
		return w
	}
	w = &window{}
	l.clients[clientID] = w
	return w
}

// maybeCleanup drops clients whose every timestamp has aged out, so idle
// identities do not accumulate forever. The interval check holds only a read
// lock; concurrent clients contend on the exclusive lock only when a sweep
// is actually due.
func (l *Limiter) maybeCleanup(now time.Time) {
	l.mu.RLock()
	due := now.Sub(l.lastCleanup) >= cleanupInterval
	l.mu.RUnlock()
	if !due {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check: another goroutine may have swept while we waited.
	if now.Sub(l.lastCleanup) < cleanupInterval {
		return
	}
	l.lastCleanup = now
	cutoff := now.Add(-l.span)
	for id, w := range l.clients {
		w.mu.Lock()
		stale := len(w.stamps) == 0 || !w.stamps[len(w.stamps)-1].After(cutoff)
		w.mu.Unlock()
		if stale {
			delete(l.clients, id)
		}
	}
}
