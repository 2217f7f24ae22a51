package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/auth"
)

// LimiterClass is the coarse endpoint class a per-minute ceiling applies to
type LimiterClass string

const (
	ClassAuth     LimiterClass = "auth"
	ClassMutation LimiterClass = "mutation"
	ClassRead     LimiterClass = "read"
)

// Decision is the result of a rate limit check. Remaining and ResetAt reflect
// the post-increment state of the current window.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type windowKey struct {
	clientID    string
	class       LimiterClass
	windowStart int64
}

// RateLimiter counts requests in minute-aligned fixed windows, keyed by
// client identity and limiter class. Counters are process-local and rebuilt
// from zero on restart; rate limiting here is best-effort, not durable.
type RateLimiter struct {
	mu         sync.Mutex
	counters   map[windowKey]int
	retention  time.Duration
	maxEntries int
	now        func() time.Time
}

// NewRateLimiter creates a rate limiter. retention is how long past windows
// are kept before the sweep discards them; maxEntries is the map size that
// triggers a sweep.
func NewRateLimiter(retention time.Duration, maxEntries int) *RateLimiter {
	return &RateLimiter{
		counters:   make(map[windowKey]int),
		retention:  retention,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Check increments the counter for the client's current window and compares
// it against limit. Increment and comparison happen under one lock hold, so
// two concurrent requests cannot both claim the last slot.
func (rl *RateLimiter) Check(clientID string, class LimiterClass, limit int) Decision {
	now := rl.now()
	windowStart := now.Truncate(time.Minute)
	key := windowKey{clientID: clientID, class: class, windowStart: windowStart.Unix()}

	rl.mu.Lock()
	rl.counters[key]++
	count := rl.counters[key]
	if len(rl.counters) > rl.maxEntries {
		rl.sweepLocked(now)
	}
	rl.mu.Unlock()

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(time.Minute),
	}
}

// Size returns the number of live window counters
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.counters)
}

// sweepLocked discards windows older than the retention horizon. Caller holds
// the lock.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-rl.retention).Unix()
	for key := range rl.counters {
		if key.windowStart < cutoff {
			delete(rl.counters, key)
		}
	}
}

// RateLimitMiddleware gates requests through the limiter for one class.
// Quota headers are attached to the response so they reflect post-check state.
func RateLimitMiddleware(limiter *RateLimiter, class LimiterClass, limit int, jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := limiter.Check(ClientKey(r, jwtService), class, limit)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":       "too many requests",
					"retry_after": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey resolves the rate limit identity for a request. A request carrying
// a well-formed bearer token is keyed by user even if the token is expired, so
// a client cannot shed its identity by letting tokens lapse. Everything else
// is keyed by best-effort client IP.
func ClientKey(r *http.Request, jwtService *auth.JWTService) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if claims, err := jwtService.DecodeLenient(raw); err == nil {
			return "user:" + claims.UserID.String()
		}
	}
	return "ip:" + clientIP(r)
}

// clientIP extracts the client IP: forwarded-for first value, then real-ip,
// then the transport peer address, then a literal "unknown".
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
