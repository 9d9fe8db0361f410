// ABOUTME: Per-IP rate limiting for the public ceremony endpoints
// ABOUTME: Token buckets via golang.org/x/time/rate with idle-limiter cleanup

package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientIP extracts the client address for rate limiting. Proxy headers win
// over the socket address: X-Forwarded-For (first hop), then X-Real-IP, then
// RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ipLimiters tracks one token bucket per client IP.
type ipLimiters struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func (l *ipLimiters) get(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(l.rate, l.burst)
	actual, _ := l.limiters.LoadOrStore(key, limiter)

	l.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose buckets have refilled completely. A full
// bucket means the IP has been idle for at least a window, so forgetting it
// loses nothing; this keeps the map from growing without bound.
func (l *ipLimiters) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = time.Now()

	l.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

// rateLimitByIP returns middleware that limits each client IP to perMinute
// requests, with the full minute's allowance available as a burst. Zero or
// negative disables limiting entirely.
func rateLimitByIP(perMinute int, logger *slog.Logger) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	l := &ipLimiters{
		rate:        rate.Limit(float64(perMinute) / 60.0),
		burst:       perMinute,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := l.get(clientIP(r))
			if !limiter.Allow() {
				// Report when the next token becomes available without
				// actually consuming it.
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retryAfter := max(int(delay.Seconds()), 1)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))

				logger.Warn("rate limit exceeded",
					"ip", clientIP(r),
					"path", r.URL.Path,
					"retry_after", retryAfter,
				)

				sendJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
