// Command marketd runs the CCash marketplace server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ccash-market/marketd/internal/app"
	"github.com/ccash-market/marketd/internal/app/metrics"
	"github.com/ccash-market/marketd/internal/config"
	"github.com/ccash-market/marketd/internal/middleware"
	"github.com/ccash-market/marketd/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("marketd").WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("exiting due to previous error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, log)
	if err != nil {
		return err
	}

	if err := application.Start(ctx); err != nil {
		return err
	}

	rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, log.WithField("component", "ratelimit"))
	rateLimiter.StartCleanup(10 * time.Minute)
	cors := middleware.NewCORSMiddleware(cfg.HTTP.AllowedOrigins)

	handler := metrics.InstrumentHandler(cors.Handler(rateLimiter.Handler(application.Handler())))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(shutdownCtx)
		return err
	case <-ctx.Done():
	}

	log.Info("received termination signal, shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	return application.Stop(shutdownCtx)
}
