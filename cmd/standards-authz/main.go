package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/iflastandards/standards-authz/pkg/api"
	"github.com/iflastandards/standards-authz/pkg/audit"
	"github.com/iflastandards/standards-authz/pkg/cache"
	"github.com/iflastandards/standards-authz/pkg/config"
	"github.com/iflastandards/standards-authz/pkg/identity"
	"github.com/iflastandards/standards-authz/pkg/observability"
	"github.com/iflastandards/standards-authz/pkg/ratelimit"
	"github.com/iflastandards/standards-authz/pkg/rbac"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	boot := setupLogger(os.Getenv("AUTHZ_OBSERVABILITY_LOG_LEVEL"))
	boot.Infof("Starting %s %s", api.ServiceName, version)

	if err := run(boot); err != nil {
		boot.Fatalf("Service failed: %v", err)
	}
	boot.Info("Service stopped")
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func run(boot *logrus.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	boot.WithFields(logrus.Fields{
		"identity": cfg.Identity.Mode,
		"cache":    cfg.Cache.Enabled,
		"redis":    cfg.Redis.URL != "",
		"debug":    cfg.Debug.Enabled,
		"limits":   cfg.RateLimit.Enabled,
	}).Info("Configuration loaded")

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout).WithField("service", api.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, cfg.OTelConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
	}

	cacheOpts := []cache.Option{cache.WithLogger(logger)}
	if metrics != nil {
		cacheOpts = append(cacheOpts, cache.WithRecorder(metrics))
	}
	decisionCache, err := cache.New(cfg.CacheConfig(), cacheOpts...)
	if err != nil {
		return fmt.Errorf("failed to create decision cache: %w", err)
	}

	source, err := newIdentitySource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var observe cache.ObserveFunc
	if metrics != nil {
		observe = metrics.ObserveInvalidation
	}
	var (
		invalidator cache.Invalidator = &cache.LocalInvalidator{Cache: decisionCache, Observe: observe}
		redisClient *redis.Client
		bus         *cache.Broadcaster
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		bus = cache.NewBroadcaster(redisClient, decisionCache, cfg.BusConfig(), logger, observe)
		if err := bus.Subscribe(ctx); err != nil {
			logger.WithError(err).Warn("Invalidation bus unavailable, invalidations stay local")
			bus.Close()
			bus = nil
		} else {
			invalidator = bus
		}
	}

	var auditLog *audit.MemoryLogger
	resolverOpts := []rbac.ResolverOption{
		rbac.WithRoleSetTTL(cfg.Cache.RoleSetTTL),
		rbac.WithResolverLogger(logger),
	}
	checkerOpts := []rbac.CheckerOption{rbac.WithCheckerLogger(logger)}
	if metrics != nil {
		resolverOpts = append(resolverOpts, rbac.WithResolverObserver(metrics))
		checkerOpts = append(checkerOpts, rbac.WithCheckerObserver(metrics))
	}
	if cfg.Debug.Enabled {
		auditLog = audit.NewMemoryLogger(cfg.AuditConfig(), logger)
		checkerOpts = append(checkerOpts, rbac.WithAudit(auditLog))
	}

	resolver := rbac.NewResolver(source, decisionCache, resolverOpts...)
	checker := rbac.NewChecker(decisionCache, checkerOpts...)
	mw := rbac.NewMiddleware(resolver, checker,
		rbac.WithErrorDetails(cfg.Debug.ErrorDetails),
		rbac.WithMiddlewareLogger(logger),
	)

	var limits *ratelimit.Middleware
	if cfg.RateLimit.Enabled {
		limits = newRateLimits(ctx, cfg, redisClient, logger)
	}

	server := api.NewServer(api.Options{
		Middleware:   mw,
		Checker:      checker,
		Cache:        decisionCache,
		Invalidator:  invalidator,
		Audit:        auditLog,
		Metrics:      metrics,
		RateLimit:    limits,
		Logger:       logger,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(redisClient, version)
	if cfg.ConfigFile != "" {
		path := cfg.ConfigFile
		health.AddProbe("overlay", func(context.Context) error {
			_, err := os.Stat(path)
			return err
		})
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.HealthAddress(),
		Handler: api.NewHealthRouter(health, registry),
	}

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.Register("health server", healthServer.Shutdown)
	sm.Register("decision cache", func(context.Context) error { return decisionCache.Close() })
	sm.Register("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	if bus != nil {
		sm.Register("invalidation bus", func(context.Context) error { return bus.Close() })
	}
	if redisClient != nil {
		sm.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	if cfg.ConfigFile != "" {
		watcher, err := config.WatchOverlay(cfg.ConfigFile, decisionCache.SetResourceTTLs, logger)
		if err != nil {
			return err
		}
		sm.Register("overlay watcher", func(context.Context) error { return watcher.Close() })
	}

	serve := func(name string, srv *http.Server) {
		defer observability.RecoverPanic(logger, name)
		logger.WithField("addr", srv.Addr).Infof("Starting %s", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Errorf("%s failed", name)
			stop()
		}
	}
	go serve("API server", httpServer)
	go serve("health server", healthServer)

	return sm.Wait(ctx)
}

func newIdentitySource(ctx context.Context, cfg *config.Config, logger *observability.Logger) (identity.Source, error) {
	switch cfg.Identity.Mode {
	case config.IdentityStatic:
		src, err := identity.LoadStaticSource(cfg.Identity.StaticUsersFile)
		if err != nil {
			return nil, err
		}
		logger.WithField("file", cfg.Identity.StaticUsersFile).Warn("Using static identities; do not run this in production")
		return src, nil
	default:
		src, err := identity.NewOIDCSource(ctx, cfg.OIDCConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC identity source: %w", err)
		}
		return src, nil
	}
}

// newRateLimits shares counters through Redis when it is configured and
// keeps per-process buckets otherwise
func newRateLimits(ctx context.Context, cfg *config.Config, client *redis.Client, logger *observability.Logger) *ratelimit.Middleware {
	callerCfg, anonymousCfg := cfg.RateLimits()
	if client != nil {
		return ratelimit.NewMiddleware(
			ratelimit.NewRedisLimiter(client, callerCfg, "authz:ratelimit:caller"),
			ratelimit.NewRedisLimiter(client, anonymousCfg, "authz:ratelimit:anonymous"),
			logger,
		)
	}
	caller := ratelimit.NewMemoryLimiter(callerCfg)
	anonymous := ratelimit.NewMemoryLimiter(anonymousCfg)
	caller.StartCleanup(ctx)
	anonymous.StartCleanup(ctx)
	return ratelimit.NewMiddleware(caller, anonymous, logger)
}
