package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SirClappington/genejobs/internal/api"
	"github.com/SirClappington/genejobs/internal/app"
	"github.com/SirClappington/genejobs/internal/config"
	"github.com/SirClappington/genejobs/internal/jobs"
	"github.com/SirClappington/genejobs/internal/logging"
	"github.com/SirClappington/genejobs/internal/metrics"
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

	svc := jobs.NewService(deps.Store, deps.Store, deps.Queue, logger)
	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewRouter(svc, deps, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.NewServer(cfg.MetricsAddr).Run(ctx) })
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", cfg.APIAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("api stopped", zap.Error(err))
	}
}
