package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/sharebin/internal/metrics"
)

const (
	maxLimiters     = 10000
	cleanupInterval = 5 * time.Minute
	limiterTTL      = 30 * time.Minute
)

// RateLimiter hands each client IP its own token bucket. Buckets idle for
// longer than limiterTTL are dropped by a background loop; call Stop to end
// it.
type RateLimiter struct {
	rpm    int
	burst  int
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	now      func() time.Time

	quit     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter allows rpm requests per minute per IP with bursts of up
// to burst.
func NewRateLimiter(rpm, burst int, logger *slog.Logger) *RateLimiter {
	if rpm < 1 {
		rpm = 1
	}
	if burst < 1 {
		burst = 1
	}
	l := &RateLimiter{
		rpm:      rpm,
		burst:    burst,
		logger:   logger,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
		quit:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the cleanup loop. Safe to call more than once.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}

// Allow reports whether the client at ip may make another request now.
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) >= maxLimiters {
			l.logger.Warn("rate limiter at capacity, rejecting request",
				slog.Int("limiters", len(l.limiters)),
				slog.String("ip", ip),
			)
			return false
		}
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(l.rpm)/60.0), l.burst),
		}
		l.limiters[ip] = entry
	}
	entry.lastAccess = l.now()
	return entry.limiter.Allow()
}

// Limit rejects over-limit requests with 429 and a Retry-After header.
// name labels the refusals in metrics.
func (l *RateLimiter) Limit(name string) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(60.0 / float64(l.rpm))))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.Allow(ip) {
				metrics.RateLimitHits.WithLabelValues(name).Inc()
				l.logger.Debug("rate limited", slog.String("ip", ip), slog.String("route", name))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "rate_limited",
					"message": "Too many requests, slow down",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.quit:
			return
		}
	}
}

func (l *RateLimiter) evictIdle() {
	now := l.now()
	l.mu.Lock()
	evicted := 0
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastAccess) > limiterTTL {
			delete(l.limiters, ip)
			evicted++
		}
	}
	remaining := len(l.limiters)
	l.mu.Unlock()
	if evicted > 0 {
		l.logger.Debug("rate limiter cleanup",
			slog.Int("evicted", evicted),
			slog.Int("remaining", remaining),
		)
	}
}

// clientIP is RemoteAddr without the port. chi's RealIP middleware, when
// mounted, has already rewritten RemoteAddr from proxy headers.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
