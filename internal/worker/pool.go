package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SirClappington/genejobs/internal/domain"
	"github.com/SirClappington/genejobs/internal/metrics"
	"github.com/SirClappington/genejobs/internal/queue"
)

const dequeueErrorBackoff = time.Second

// Pool runs a fixed number of consumers against one queue.
type Pool struct {
	queue     queue.Consumer
	processor *Processor
	workers   int
	block     time.Duration
	log       *zap.Logger
}

func NewPool(q queue.Consumer, p *Processor, workers int, block time.Duration, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{queue: q, processor: p, workers: workers, block: block, log: log.Named("pool")}
}

// Run blocks until ctx is cancelled. A job being processed when that
// happens still runs to the end.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		i := i
		g.Go(func() error {
			p.consume(ctx, i)
			return nil
		})
	}
	p.log.Info("worker pool started", zap.Int("workers", p.workers))
	return g.Wait()
}

func (p *Pool) consume(ctx context.Context, workerID int) {
	log := p.log.With(zap.Int("worker_id", workerID))
	log.Debug("starting worker")

	for {
		if ctx.Err() != nil {
			log.Debug("stopping worker")
			return
		}
		jobID, err := p.queue.Dequeue(ctx, p.block)
		switch {
		case errors.Is(err, queue.ErrEmpty):
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			log.Error("dequeue failed", zap.Error(err))
			sleep(ctx, dequeueErrorBackoff)
			continue
		}
		p.handle(context.WithoutCancel(ctx), log, jobID)
	}
}

// handle processes one delivery and acks it whatever the outcome; failed
// jobs are not retried and keep whatever status they reached.
func (p *Pool) handle(ctx context.Context, log *zap.Logger, jobID string) {
	start := time.Now()
	_, err := p.processor.Process(ctx, jobID)
	metrics.JobDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.JobsProcessed.WithLabelValues(metrics.OutcomeComplete).Inc()
	case errors.Is(err, domain.ErrDataIntegrity):
		metrics.JobsProcessed.WithLabelValues(metrics.OutcomeAbandoned).Inc()
		log.Warn("abandoning job", zap.String("job_id", jobID), zap.Error(err))
	default:
		metrics.JobsProcessed.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error("job failed", zap.String("job_id", jobID), zap.Error(err))
	}

	if err := p.queue.Ack(ctx, jobID); err != nil {
		log.Error("ack failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
