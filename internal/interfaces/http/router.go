package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/internal/infrastructure/monitoring/prometheus"
	"github.com/networknext/portal/internal/interfaces/http/handlers"
	"github.com/networknext/portal/internal/interfaces/http/middleware"
)

// DefaultMetricsPath is where the Prometheus registry is served.
const DefaultMetricsPath = "/metrics"

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the route tree. Nil handlers leave their routes unmounted and
// nil middleware is skipped.
type RouterConfig struct {
	// Handlers
	PageHandler     *handlers.PageHandler
	PortalHandler   *handlers.PortalHandler
	OverviewHandler *handlers.OverviewHandler
	AdminHandler    *handlers.AdminHandler
	HealthHandler   *handlers.HealthHandler

	// Middleware
	AuthMiddleware      *middleware.AuthMiddleware
	CORSMiddleware      *middleware.CORSMiddleware
	LoggingMiddleware   *middleware.LoggingMiddleware
	MetricsMiddleware   *middleware.MetricsMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	// Infrastructure
	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter constructs the HTTP route tree from the given configuration.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORSMiddleware != nil {
		r.Use(cfg.CORSMiddleware.Handler)
	}
	if cfg.LoggingMiddleware != nil {
		r.Use(cfg.LoggingMiddleware.Handler)
	}
	if cfg.MetricsMiddleware != nil {
		r.Use(cfg.MetricsMiddleware.Handler)
	}
	if cfg.RateLimitMiddleware != nil {
		r.Use(cfg.RateLimitMiddleware.Handler)
	}

	registerHealthRoutes(r, cfg.HealthHandler)

	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = DefaultMetricsPath
		}
		r.Handle(path, cfg.MetricsCollector.Handler())
	}

	// Pages and public API: anonymous viewers are welcome.
	r.Group(func(pub chi.Router) {
		if cfg.AuthMiddleware != nil {
			pub.Use(cfg.AuthMiddleware.Optional)
		}
		registerPageRoutes(pub, cfg.PageHandler)
		registerPublicPortalRoutes(pub, cfg.PortalHandler)
	})

	// Session API: a valid token is mandatory.
	r.Group(func(priv chi.Router) {
		if cfg.AuthMiddleware != nil {
			priv.Use(cfg.AuthMiddleware.Required)
		}
		registerSessionRoutes(priv, cfg.PortalHandler)
		registerOverviewRoutes(priv, cfg.OverviewHandler)
	})

	if cfg.AuthMiddleware != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(cfg.AuthMiddleware.Required)
			admin.Use(middleware.RequireCapability(middleware.IsAdmin))
			registerAdminRoutes(admin, cfg.AdminHandler)
		})
	}

	return r
}

func registerHealthRoutes(r chi.Router, h *handlers.HealthHandler) {
	if h == nil {
		return
	}
	r.Get("/ping", h.Ping)
	r.Get("/healthz", h.Liveness)
	r.Get("/healthz/detail", h.Detailed)
	r.Get("/readyz", h.Readiness)
}

func registerPageRoutes(r chi.Router, h *handlers.PageHandler) {
	if h == nil {
		return
	}
	r.Get("/", h.Index)
	r.Get("/downloads", h.Downloads)
	r.Route("/user-tool", func(ut chi.Router) {
		ut.Get("/", h.UserTool)
		ut.Get("/{user_id}", h.UserToolLookup)
	})
}

func registerPublicPortalRoutes(r chi.Router, h *handlers.PortalHandler) {
	if h == nil {
		return
	}
	r.Get("/portal/me", h.Me)
	r.Get("/portal/downloads", h.Downloads)
}

func registerSessionRoutes(r chi.Router, h *handlers.PortalHandler) {
	if h == nil {
		return
	}
	r.Get("/portal/user_sessions/{user_id}", h.UserSessions)
	r.Get("/portal/session/{session_id}", h.Session)
}

func registerOverviewRoutes(r chi.Router, h *handlers.OverviewHandler) {
	if h == nil {
		return
	}
	r.Get("/portal/session_counts", h.SessionCounts)
	r.Get("/portal/sessions/{begin}/{end}", h.Sessions)
}

// registerAdminRoutes mounts profile administration under /admin.
func registerAdminRoutes(r chi.Router, h *handlers.AdminHandler) {
	if h == nil {
		return
	}
	r.Route("/user_profiles", func(pr chi.Router) {
		pr.Get("/", h.ListProfiles)
		pr.Put("/{subject}/company", h.SetCompany)
	})
}
