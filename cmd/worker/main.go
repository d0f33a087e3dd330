package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SirClappington/genejobs/internal/app"
	"github.com/SirClappington/genejobs/internal/config"
	"github.com/SirClappington/genejobs/internal/logging"
	"github.com/SirClappington/genejobs/internal/metrics"
	"github.com/SirClappington/genejobs/internal/worker"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open backends", zap.Error(err))
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("close backends", zap.Error(err))
		}
	}()

	proc := worker.NewProcessor(deps.Store, deps.Store, deps.Genes, logger)
	pool := worker.NewPool(deps.Queue, proc, cfg.WorkerConcurrency, cfg.DequeueBlock, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.NewServer(cfg.MetricsAddr).Run(ctx) })
	g.Go(func() error { return pool.Run(ctx) })

	logger.Info("worker started, waiting for jobs")
	if err := g.Wait(); err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}
}
