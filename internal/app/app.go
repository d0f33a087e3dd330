// Package app builds the long-lived handles every process needs from the
// configuration. Handles are created once at startup and closed on exit.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/SirClappington/genejobs/internal/config"
	"github.com/SirClappington/genejobs/internal/domain"
	"github.com/SirClappington/genejobs/internal/genes"
	"github.com/SirClappington/genejobs/internal/queue"
	"github.com/SirClappington/genejobs/internal/storage"
)

type Deps struct {
	Config config.Config
	Log    *zap.Logger

	GeneRedis  *r.Client
	QueueRedis *r.Client

	Store storage.Store
	Genes *genes.RedisStore
	Queue *queue.RedisQ

	closers []func() error
}

func (d *Deps) redis(db int) *r.Client {
	rdb := r.NewClient(&r.Options{Addr: d.Config.RedisAddr, Password: d.Config.RedisPassword, DB: db})
	d.closers = append(d.closers, rdb.Close)
	return rdb
}

// Open connects the gene store, the queue and the configured job/result backend.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Deps, error) {
	d := &Deps{Config: cfg, Log: log}
	d.GeneRedis = d.redis(cfg.GeneDB)
	d.QueueRedis = d.redis(cfg.QueueDB)
	d.Genes = genes.NewRedis(d.GeneRedis)
	d.Queue = queue.NewRedis(d.QueueRedis, cfg.QueueName, cfg.Visibility())

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, multierr.Append(errors.Wrap(err, "connect postgres"), d.Close())
		}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		if err := storage.Migrate(ctx, pool); err != nil {
			return nil, multierr.Append(err, d.Close())
		}
		d.Store = storage.NewPostgres(pool)
	default:
		d.Store = storage.NewRedis(d.redis(cfg.JobDB), d.redis(cfg.ResultDB))
	}

	log.Info("backends ready",
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("redis_addr", cfg.RedisAddr))
	return d, nil
}

// Ping checks every backend the API depends on.
func (d *Deps) Ping(ctx context.Context) error {
	if err := d.Store.Ping(ctx); err != nil {
		return err
	}
	return domain.NewStoreError("ping queue", d.QueueRedis.Ping(ctx).Err())
}

func (d *Deps) Close() error {
	var err error
	for i := len(d.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, d.closers[i]())
	}
	d.closers = nil
	return err
}
