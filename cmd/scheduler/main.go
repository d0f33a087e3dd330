package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/SirClappington/genejobs/internal/app"
	"github.com/SirClappington/genejobs/internal/config"
	"github.com/SirClappington/genejobs/internal/logging"
	"github.com/SirClappington/genejobs/internal/scheduler"
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

	// the lock outlives a couple of ticks so a healthy leader keeps it
	reaper := scheduler.NewReaper(deps.QueueRedis, deps.Queue, cfg.ReapBatch, 30*time.Second, logger)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.ReapSchedule, func() {
		if _, err := reaper.Tick(ctx); err != nil {
			logger.Error("reap", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("bad REAP_SCHEDULE", zap.String("schedule", cfg.ReapSchedule), zap.Error(err))
	}
	c.Start()
	logger.Info("scheduler started", zap.String("schedule", cfg.ReapSchedule))

	<-ctx.Done()
	<-c.Stop().Done()
	if err := reaper.Release(context.Background()); err != nil {
		logger.Warn("release leadership", zap.Error(err))
	}
}
