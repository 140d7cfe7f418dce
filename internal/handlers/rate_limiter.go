package handlers

import (
	"strings"
	"sync"
	"time"
)

// Quote creation is the only endpoint worth throttling: a single customer
// spamming requests floods every artisan's inbox.
const (
	defaultQuoteCreateLimit  = 10
	defaultQuoteCreateWindow = time.Hour
)

// rateLimiter reports whether the actor identified by key may proceed.
type rateLimiter interface {
	Allow(key string) bool
}

// actorRateLimiter counts requests per actor in fixed windows. State lives in
// memory only; a restart resets all counters.
type actorRateLimiter struct {
	limit   int
	window  time.Duration
	clock   func() time.Time
	mu      sync.Mutex
	windows map[string]rateWindow
}

type rateWindow struct {
	count int
	reset time.Time
}

func newActorRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &actorRateLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]rateWindow),
	}
}

func (l *actorRateLimiter) Allow(actorID string) bool {
	if l == nil {
		return true
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[actorID]
	if !ok || now.After(current.reset) {
		l.windows[actorID] = rateWindow{count: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return true
	}

	if current.count >= l.limit {
		return false
	}
	current.count++
	l.windows[actorID] = current
	return true
}

func (l *actorRateLimiter) pruneExpiredLocked(now time.Time) {
	if len(l.windows) == 0 {
		return
	}
	for actorID, current := range l.windows {
		if now.After(current.reset) {
			delete(l.windows, actorID)
		}
	}
}
