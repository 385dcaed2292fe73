package api //nolint:revive // package name is intentional

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SessionRateLimiter keeps one token bucket per session. Requests that do not
// name a session are keyed by client address.
type SessionRateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rate       rate.Limit
	burst      int
	cleanupTTL time.Duration
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// RateLimiterConfig contains configuration for the session rate limiter.
type RateLimiterConfig struct {
	RequestsPerMinute int           // Sustained requests per minute per session
	BurstSize         int           // Requests allowed in a burst
	CleanupTTL        time.Duration // TTL for inactive limiters
}

// NewSessionRateLimiter creates a limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewSessionRateLimiter(cfg RateLimiterConfig) *SessionRateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 5
	}
	if cfg.CleanupTTL <= 0 {
		cfg.CleanupTTL = 10 * time.Minute
	}

	l := &SessionRateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rate:       rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:      cfg.BurstSize,
		cleanupTTL: cfg.CleanupTTL,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether one more request for key fits in its bucket.
func (l *SessionRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	now := l.now()
	l.lastAccess[key] = now
	l.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// Remove forgets the bucket for key, e.g. after its session is cleared.
func (l *SessionRateLimiter) Remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
	delete(l.lastAccess, key)
}

// Len returns the number of tracked buckets.
func (l *SessionRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Stop ends the cleanup goroutine.
func (l *SessionRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *SessionRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *SessionRateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, last := range l.lastAccess {
		if now.Sub(last) > l.cleanupTTL {
			delete(l.limiters, key)
			delete(l.lastAccess, key)
		}
	}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func addressKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		host = remoteAddr
	}
	return "addr:" + host
}
