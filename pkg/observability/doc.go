// Package observability provides structured logging, Prometheus metrics,
// health probes and OpenTelemetry tracing for the authorization service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("role set resolved")
//
// Request-scoped logging picks up the request and user IDs placed in the
// context by the HTTP middleware:
//
//	observability.FromContext(ctx).Warn("malformed team entry skipped")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveDecision("namespace", "update", true, "evaluated", d)
//
// Metrics also implements cache.Recorder so the decision cache reports hits,
// misses, evictions and size.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(redisClient, version)
//	checker.AddProbe("cache", cacheProbe)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//	ctx, span := observability.Tracer().Start(ctx, "rbac.Check")
package observability
