package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/safenotsorry/checkin/internal/middleware"
)

// RouterConfig collects the handlers mounted by NewRouter.
type RouterConfig struct {
	Handler     *Handler
	Health      *HealthHandler
	SMS         *SMSHandler
	Metrics     http.Handler // optional
	MaxBodySize int64
	Logger      *slog.Logger
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.NoStore)

	r.Get("/", cfg.Handler.Index)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.With(middleware.MaxBodySize(cfg.MaxBodySize)).Post("/sms-response", cfg.SMS.Receive)

	r.NotFound(cfg.Handler.NotFound)
	r.MethodNotAllowed(cfg.Handler.MethodNotAllowed)

	return r
}
