package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"tipsplit/internal/backend"
	"tipsplit/internal/cli"
	apphttp "tipsplit/internal/http"
	applog "tipsplit/internal/log"
	"tipsplit/internal/metrics"
	"tipsplit/internal/middleware/ratelimit"
	"tipsplit/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	m := metrics.New()
	svc := services.NewDistributionService(res.History, res.Publisher(), m, logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		DefaultMinCash: cfg.DefaultMinCash,
		RateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Burst:             cfg.RateLimitBurst,
		},
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	}, svc, m, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting tipsplit server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"history", svc.HistoryEnabled(),
			"events", res.AMQP != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer shutdownCancel()
		logger.Info("Shutting down server", applog.FieldOperation, applog.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
