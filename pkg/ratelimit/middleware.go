package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/iflastandards/standards-authz/pkg/contextkeys"
	"github.com/iflastandards/standards-authz/pkg/httputil"
	"github.com/iflastandards/standards-authz/pkg/observability"
)

// CodeRateLimited is the error code of a 429 response
const CodeRateLimited = "RATE_LIMITED"

// Middleware provides HTTP rate limiting. Callers presenting a bearer token
// are keyed by a hash of the token, anonymous callers by client IP. It must
// run after identity.TokenMiddleware.
type Middleware struct {
	caller    Limiter
	anonymous Limiter
	logger    *observability.Logger
}

// NewMiddleware creates a new rate limit middleware
func NewMiddleware(caller, anonymous Limiter, logger *observability.Logger) *Middleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Middleware{caller: caller, anonymous: anonymous, logger: logger}
}

// Handler wraps an HTTP handler with rate limiting. Limiter errors fail open.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		var limiter Limiter
		if token, ok := contextkeys.GetBearerToken(r.Context()); ok {
			key = "token:" + tokenKey(token)
			limiter = m.caller
		} else {
			key = "ip:" + clientIP(r)
			limiter = m.anonymous
		}

		res, err := limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		setHeaders(w, res)
		if !res.Allowed {
			retryAfter := time.Until(res.Reset).Seconds()
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter))
			httputil.WriteAPIError(w, r, http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", res.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", res.Reset.Unix()))
}

// tokenKey keeps raw tokens out of limiter state
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func clientIP(r *http.Request) string {
	// first hop of X-Forwarded-For when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
