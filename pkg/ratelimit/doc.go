// Package ratelimit throttles callers of the authorization API.
//
// Two Limiter implementations are provided. MemoryLimiter is a per-process
// token bucket whose capacity is RequestsPerWindow plus BurstSize.
// RedisLimiter counts requests in a fixed window shared by every instance
// pointed at the same Redis.
//
// Middleware picks the limiter per request: callers with a bearer token are
// keyed by a truncated SHA-256 of the token, anonymous callers by client IP.
// Responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; a rejected request gets 429 RATE_LIMITED with
// Retry-After. When a limiter returns an error the request is let through.
//
//	limits := ratelimit.NewMiddleware(
//		ratelimit.NewRedisLimiter(client, ratelimit.CallerConfig(), "authz:ratelimit:caller"),
//		ratelimit.NewRedisLimiter(client, ratelimit.AnonymousConfig(), "authz:ratelimit:anonymous"),
//		logger,
//	)
//	router.Use(identity.TokenMiddleware, limits.Handler)
package ratelimit
