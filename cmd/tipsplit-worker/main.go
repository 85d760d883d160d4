package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"tipsplit/internal/backend"
	"tipsplit/internal/cli"
	applog "tipsplit/internal/log"
	"tipsplit/internal/metrics"
	"tipsplit/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(applog.ComponentWorker)

	logger.Info("Starting tipsplit-worker", "sheets_export", cfg.SheetsEnabled())

	// The worker reads the records the server wrote, so it needs the shared database.
	if cfg.DataBackend != string(backend.SQLiteBackend) {
		logger.Error("Worker requires the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	exporter, err := factory.CreateExporter(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", applog.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()
	exportWorker := worker.NewExportWorker(res.History, exporter, m, logger, cfg.ExportBatchSize)
	sweeper := worker.NewSweeper(exportWorker, worker.SweeperConfig{Interval: cfg.ExportInterval})

	g, gctx := errgroup.WithContext(ctx)

	if err := sweeper.Start(gctx); err != nil {
		logger.Error("Failed to start export sweeper", applog.FieldError, err)
		os.Exit(1)
	}

	if res.AMQP != nil {
		g.Go(func() error {
			err := res.AMQP.ConsumeDistributionRecorded(gctx, exportWorker.HandleRecordedMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.Info("Skipping AMQP message consumption - relying on periodic sweeps")
	}

	if cfg.WorkerMetricsPort != "" {
		metricsSrv := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Serving worker metrics", "port", cfg.WorkerMetricsPort)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	<-gctx.Done()
	logger.Info("Shutting down worker", applog.FieldOperation, applog.OpShutdown)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer stopCancel()
	if err := sweeper.Stop(stopCtx); err != nil {
		logger.Error("Sweeper stop failed", applog.FieldError, err)
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
