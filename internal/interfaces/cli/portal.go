package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/networknext/portal/internal/application/overview"
	"github.com/networknext/portal/internal/application/profile"
	"github.com/networknext/portal/internal/application/usertool"
	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/domain/downloads"
	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/auth/token"
	"github.com/networknext/portal/internal/infrastructure/database/postgres"
	"github.com/networknext/portal/internal/infrastructure/database/postgres/repositories"
	rediscache "github.com/networknext/portal/internal/infrastructure/database/redis"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/networknext/portal/internal/interfaces/http"
	"github.com/networknext/portal/internal/interfaces/http/handlers"
	"github.com/networknext/portal/internal/interfaces/http/middleware"
	"github.com/networknext/portal/internal/interfaces/http/views"
)

// telemetry is the metrics registry shared by a process.
type telemetry struct {
	collector prometheus.MetricsCollector
	metrics   *prometheus.PortalMetrics
}

func newTelemetry(cfg config.MetricsConfig, logger logging.Logger) (*telemetry, error) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Namespace,
		EnableGoMetrics:      true,
		EnableProcessMetrics: true,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	metrics := prometheus.NewPortalMetrics(collector)
	metrics.BuildInfo.WithLabelValues(Version, GitCommit).Set(1)
	return &telemetry{collector: collector, metrics: metrics}, nil
}

// portalInfra is what the portal handler tree is built on.
type portalInfra struct {
	sessions  session.Repository
	activity  session.ActivityRepository
	cache     rediscache.Cache
	profiles  user.Repository
	checkers  []handlers.HealthChecker
	telemetry *telemetry
}

// buildPortalHandler wires services, middleware and routes. The returned
// stop function releases the rate limiter.
func buildPortalHandler(cfg *config.Config, infra portalInfra, logger logging.Logger) (http.Handler, func(), error) {
	metrics := infra.telemetry.metrics

	catalog, err := downloads.SDK(cfg.Portal.SDKVersion, cfg.Portal.SDKURL, cfg.Portal.DocsURL)
	if err != nil {
		return nil, nil, err
	}

	var (
		lookupCache   usertool.Cache
		profileCache  profile.Cache
		overviewCache overview.Cache
	)
	if infra.cache != nil {
		lookupCache, profileCache, overviewCache = infra.cache, infra.cache, infra.cache
	}
	users := usertool.NewService(infra.sessions, lookupCache, usertool.Config{
		MaxSessions:     cfg.Portal.MaxSessions,
		ScanLimit:       cfg.Portal.StoredSessionsPerUser,
		CacheTTL:        cfg.Portal.LookupCacheTTL,
		MaxUserIDLength: cfg.Portal.MaxUserIDLength,
	}, logger, usertool.WithObserver(metrics))
	profiles := profile.NewService(infra.profiles, profileCache, cfg.Portal.ProfileCacheTTL, logger)

	var verifier token.Verifier
	if cfg.Auth.Enabled {
		v, err := token.NewJWTVerifier(cfg.Auth, logger, token.WithObserver(metrics))
		if err != nil {
			return nil, nil, fmt.Errorf("auth: %w", err)
		}
		verifier = v
	} else {
		logger.Warn("Authentication disabled, every viewer is anonymous")
	}

	renderer, err := views.New()
	if err != nil {
		return nil, nil, err
	}

	stop := func() {}
	var rateLimit *middleware.RateLimitMiddleware
	if cfg.Server.RateLimit.Enabled {
		rateLimit = middleware.NewRateLimitMiddleware(middleware.RateLimitConfigFrom(cfg.Server.RateLimit))
		stop = rateLimit.Stop
	}

	var overviewHandler *handlers.OverviewHandler
	if infra.activity != nil {
		overviewHandler = handlers.NewOverviewHandler(overview.NewService(infra.activity, overviewCache, overview.Config{
			MaxPage:  cfg.Portal.RecentPageSize,
			CacheTTL: cfg.Portal.LookupCacheTTL,
		}, logger), logger)
	}

	rc := httpserver.RouterConfig{
		PageHandler:         handlers.NewPageHandler(renderer, users, catalog, logger),
		PortalHandler:       handlers.NewPortalHandler(users, catalog, logger),
		OverviewHandler:     overviewHandler,
		AdminHandler:        handlers.NewAdminHandler(profiles, logger),
		HealthHandler:       handlers.NewHealthHandler(Version, infra.checkers...).WithObserver(metrics),
		AuthMiddleware:      middleware.NewAuthMiddleware(verifier, profiles, middleware.AuthConfig{}, logger),
		CORSMiddleware:      middleware.NewCORSMiddleware(middleware.CORSConfigFrom(cfg.Server.CORS)),
		LoggingMiddleware:   middleware.NewLoggingMiddleware(logger, middleware.DefaultLoggingConfig()),
		MetricsMiddleware:   middleware.NewMetricsMiddleware(metrics, cfg.Metrics.Path),
		RateLimitMiddleware: rateLimit,
		Logger:              logger,
		MetricsPath:         cfg.Metrics.Path,
	}
	if cfg.Metrics.Enabled {
		rc.MetricsCollector = infra.telemetry.collector
	}
	return httpserver.NewRouter(rc), stop, nil
}

// Portal is the wired portal service.
type Portal struct {
	Handler http.Handler

	cfg     *config.Config
	logger  logging.Logger
	closers []func() error
}

// NewPortal connects to Postgres and Redis, runs pending migrations when
// database.auto_migrate is set, and builds the HTTP handler.
func NewPortal(cfg *config.Config, logger logging.Logger) (*Portal, error) {
	p := &Portal{cfg: cfg, logger: logger}

	tel, err := newTelemetry(cfg.Metrics, logger)
	if err != nil {
		return nil, err
	}

	conn, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	p.closers = append(p.closers, conn.Close)

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(cfg.Database, logger).Up(); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	client, err := openRedis(cfg.Redis, logger)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	p.closers = append(p.closers, client.Close)

	cache := newPortalCache(client, cfg, logger, rediscache.WithObserver(tel.metrics))

	store := newSessionStore(client, cfg, logger)
	handler, stop, err := buildPortalHandler(cfg, portalInfra{
		sessions: store,
		activity: store,
		cache:    cache,
		profiles: repositories.NewPostgresProfileRepo(conn, logger),
		checkers: []handlers.HealthChecker{
			handlers.NewChecker("postgres", conn.HealthCheck),
			redisReadiness(client, tel.metrics),
		},
		telemetry: tel,
	}, logger)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.closers = append(p.closers, func() error { stop(); return nil })
	p.Handler = handler
	return p, nil
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (p *Portal) Run(ctx context.Context) error {
	return runServer(ctx, httpserver.NewServer(p.cfg.Server, p.Handler, p.logger))
}

// Close releases connections in reverse order of acquisition.
func (p *Portal) Close() error {
	var firstErr error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}

func runServer(ctx context.Context, srv *httpserver.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if err := srv.Stop(context.Background()); err != nil {
		return err
	}
	return <-errCh
}
