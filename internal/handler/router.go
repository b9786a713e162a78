package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/itemdesk/itemdesk/internal/middleware"
	"github.com/itemdesk/itemdesk/internal/session"
)

// RouterConfig collects everything the router wires together.
type RouterConfig struct {
	Base     *Handler
	Auth     *AuthHandler
	Items    *ItemHandler
	Health   *HealthHandler
	Metrics  *MetricsHandler
	Sessions *session.Manager
	Logger   *slog.Logger

	Security    middleware.SecurityConfig
	MaxBodySize int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware. LoadSession runs before Logger so request logs
	// carry the user id.
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer(cfg.Logger, cfg.Base.InternalError))
	r.Use(middleware.Security(cfg.Security))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}
	r.Use(chimiddleware.StripSlashes)
	r.Use(middleware.LoadSession(cfg.Sessions, cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))

	// Probes
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	r.Get("/metrics", cfg.Metrics.Metrics)

	// Public pages
	r.Get("/", cfg.Base.Index)
	r.Get("/register", cfg.Auth.RegisterForm)
	r.Post("/register", cfg.Auth.Register)
	r.Get("/login", cfg.Auth.LoginForm)
	r.Post("/login", cfg.Auth.Login)
	r.Get("/logout", cfg.Auth.Logout)

	// Item pages require a session
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession)

		r.Get("/items", cfg.Items.List)
		r.Get("/list_items", cfg.Items.List)
		r.Get("/items/new", cfg.Items.NewForm)
		r.Post("/items/new", cfg.Items.Create)
	})

	r.NotFound(cfg.Base.NotFound)
	r.MethodNotAllowed(cfg.Base.MethodNotAllowed)

	return r
}
