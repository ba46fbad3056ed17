package service

import (
	"sync"
	"time"
)

// RateLimiter admits at most limit requests per client within a trailing
// window. Each client keeps a log of admitted request times which is pruned
// when that client makes a new request; idle clients are never swept.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*rateWindow
}

type rateWindow struct {
	mu   sync.Mutex
	hits []time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*rateWindow),
	}
}

// WithClock replaces the time source. Used by tests.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	l.now = now
	return l
}

func (l *RateLimiter) windowFor(clientID string) *rateWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.clients[clientID]
	if !ok {
		w = &rateWindow{}
		l.clients[clientID] = w
	}
	return w
}

// Admit records a request for clientID and reports whether it is within the
// quota. Rejected attempts are not recorded.
func (l *RateLimiter) Admit(clientID string) bool {
	w := l.windowFor(clientID)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	w.prune(now.Add(-l.window))
	if len(w.hits) >= l.limit {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

// RetryAfter is how long clientID has to wait before Admit can succeed again.
func (l *RateLimiter) RetryAfter(clientID string) time.Duration {
	w := l.windowFor(clientID)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	w.prune(now.Add(-l.window))
	if len(w.hits) < l.limit {
		return 0
	}
	// The oldest hit that has to expire for a slot to open.
	oldest := w.hits[len(w.hits)-l.limit]
	return oldest.Add(l.window).Sub(now)
}

// Clients is the number of client windows currently held.
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// prune drops every hit at or before cutoff. Hits are appended in time order
// so the survivors are a suffix.
func (w *rateWindow) prune(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}
