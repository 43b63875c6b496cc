package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/lorrc/issue-relay/internal/adapters/primary/http/middleware"
)

// RouterConfig collects the handlers and middleware mounted by NewRouter.
// Nil rate limiters disable limiting for their route group.
type RouterConfig struct {
	Webhook   *WebhookHandler
	Issues    *IssueHandler
	WebSocket http.Handler
	Health    *HealthHandler

	APIRateLimiter     *mw.RateLimiter
	WebhookRateLimiter *mw.RateLimiter
	CORSAllowedOrigins []string

	Logger *slog.Logger
}

// NewRouter wires every relay endpoint onto a single chi router.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(cfg.Logger))
	r.Use(mw.RecoveryLogger(cfg.Logger))

	// Health check endpoints at standard probe paths
	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(r)
	}

	// Tracker notifications
	if cfg.Webhook != nil {
		r.Group(func(r chi.Router) {
			if cfg.WebhookRateLimiter != nil {
				r.Use(cfg.WebhookRateLimiter.Middleware)
			}
			r.Route("/webhook", cfg.Webhook.RegisterRoutes)
		})
	}

	// Live event stream on the same listener
	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket.ServeHTTP)
	}

	// Browser-facing REST proxy
	if cfg.Issues != nil {
		r.Route("/api", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: cfg.CORSAllowedOrigins,
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Content-Type", mw.RequestIDHeader},
				ExposedHeaders: []string{mw.RequestIDHeader},
				MaxAge:         300,
			}))
			if cfg.APIRateLimiter != nil {
				r.Use(cfg.APIRateLimiter.Middleware)
			}
			r.Route("/issues", cfg.Issues.RegisterRoutes)
		})
	}

	return r
}
