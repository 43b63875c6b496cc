package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/lorrc/issue-relay/internal/adapters/primary/http"
	mw "github.com/lorrc/issue-relay/internal/adapters/primary/http/middleware"
	"github.com/lorrc/issue-relay/internal/adapters/primary/websocket"
	"github.com/lorrc/issue-relay/internal/adapters/secondary/gitlab"
	"github.com/lorrc/issue-relay/internal/config"
	"github.com/lorrc/issue-relay/internal/core/services"
	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	// 3. Initialize the Tracker Client
	tracker, err := gitlab.NewClient(gitlab.Config{
		BaseURL:   cfg.GitLab.APIURL,
		ProjectID: cfg.GitLab.ProjectID,
		Token:     cfg.GitLab.AccessToken,
		Timeout:   cfg.GitLab.Timeout,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create gitlab client", "error", err)
		os.Exit(1)
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.GitLab.Timeout)
	if err := tracker.Ping(pingCtx); err != nil {
		// Not fatal: the tracker may come up after us; readiness reports it.
		logger.Warn("gitlab project unreachable at startup", "error", err)
	}
	cancelPing()

	// 4. Initialize Real-time Components
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	hub := websocket.NewHub(websocket.HubConfig{
		HeartbeatInterval: cfg.WebSocket.HeartbeatInterval,
		Logger:            logger,
	})
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(runCtx)
	}()

	// 5. Initialize Rate Limiters
	var apiRateLimiter, webhookRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		apiRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		defer apiRateLimiter.Stop()

		webhookRateLimiter = mw.NewRateLimiter(
			mw.WebhookRateLimiterConfig(cfg.RateLimit.WebhookRPS, cfg.RateLimit.WebhookBurst),
		)
		defer webhookRateLimiter.Stop()
	}

	// 6. Dependency Injection (Wiring the Hexagon)

	// Error Handler
	errorHandler := httpAdapter.NewErrorHandler(logger)

	// Services (Core)
	ingestService := services.NewIngestService(cfg.Webhook.Secret, hub, logger)
	issueService := services.NewIssueService(tracker, logger)

	// Handlers (Primary Adapters)
	webhookHandler := httpAdapter.NewWebhookHandler(ingestService, cfg.Webhook.TokenHeader, errorHandler, logger)
	commentHandler := httpAdapter.NewCommentHandler(issueService, errorHandler, logger)
	issueHandler := httpAdapter.NewIssueHandler(issueService, commentHandler, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(httpAdapter.HealthConfig{
		Upstream: tracker,
		Stream:   hub,
		Version:  cfg.App.Version,
	})

	// 7. Setup Router
	r := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		Webhook:            webhookHandler,
		Issues:             issueHandler,
		WebSocket:          wsHandler,
		Health:             healthHandler,
		APIRateLimiter:     apiRateLimiter,
		WebhookRateLimiter: webhookRateLimiter,
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:             logger,
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		stopRun()
		<-hubDone
		os.Exit(1)
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown: stop accepting requests, then drop viewers
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	stopRun()

	select {
	case <-hubDone:
	case <-shutdownCtx.Done():
		logger.Warn("hub did not stop before shutdown timeout")
	}

	logger.Info("server shutdown complete")
}
