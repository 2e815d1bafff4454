package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/pixelboard/internal/metrics"
	"github.com/eldtechnologies/pixelboard/internal/ratelimit"
)

// RateLimiter caps request volume per client IP in fixed windows. It is
// independent of the placement cooldown.
type RateLimiter struct {
	limiter  ratelimit.WindowLimiter
	endpoint string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRateLimiter creates a request volume limiter. endpoint labels metrics and logs.
func NewRateLimiter(limiter ratelimit.WindowLimiter, endpoint string, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		limiter:  limiter,
		endpoint: endpoint,
		logger:   logger,
		now:      time.Now,
	}
}

// RealIP returns the client IP from the connection's remote address.
// It is the actor identity for both rate limits. Proxy headers only count
// when ProxyHeaders has rewritten RemoteAddr upstream.
func RealIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ProxyHeaders sets RemoteAddr from the client IP reported by a trusted
// reverse proxy. Mount it only when every request arrives through such a
// proxy; otherwise clients can pick their own identity.
func ProxyHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := forwardedIP(r); ip != "" {
			r.RemoteAddr = ip
		}
		next.ServeHTTP(w, r)
	})
}

func forwardedIP(r *http.Request) string {
	// Check Fly.io header first
	if ip := r.Header.Get("Fly-Client-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	// Then X-Forwarded-For
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	// Then X-Real-IP
	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)
		now := rl.now()

		res, err := rl.limiter.Allow(r.Context(), ip, now)
		if err != nil {
			// Fail open: the placement cooldown still applies.
			rl.logger.Warn().Err(err).Str("endpoint", rl.endpoint).Msg("request limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.ResetAt.Sub(now))))
			metrics.RateLimitHits.WithLabelValues(rl.endpoint).Inc()

			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("endpoint", rl.endpoint).
				Msg("rate limit exceeded")

			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds rounds d up to whole seconds, minimum 1.
func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// RetryAfterSeconds is exported for handlers that report cooldowns.
func RetryAfterSeconds(d time.Duration) int {
	return retryAfterSeconds(d)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
