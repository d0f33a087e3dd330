package worker

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/genejobs/internal/domain"
	"github.com/SirClappington/genejobs/internal/genes"
	"github.com/SirClappington/genejobs/internal/metrics"
	"github.com/SirClappington/genejobs/internal/storage"
)

// skip reasons
const (
	skipMissing     = "missing_record"
	skipEmptyDate   = "empty_date"
	skipUnparseable = "unparseable_date"
)

// Processor runs the analysis for one job id.
type Processor struct {
	jobs    storage.JobStore
	results storage.ResultStore
	genes   genes.Store
	log     *zap.Logger
}

func NewProcessor(jobs storage.JobStore, results storage.ResultStore, g genes.Store, log *zap.Logger) *Processor {
	return &Processor{jobs: jobs, results: results, genes: g, log: log.Named("processor")}
}

// Process moves the job to in_progress, summarises the genes in its range,
// stores the summary and marks the job complete. The last two are separate
// writes: a crash between them leaves the job in_progress with no result.
// Reprocessing an in_progress or complete job recomputes and overwrites the
// same summary.
func (p *Processor) Process(ctx context.Context, jobID string) (*domain.Result, error) {
	log := p.log.With(zap.String("job_id", jobID))

	job, err := p.jobs.AdvanceStatus(ctx, jobID, domain.InProgress)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Wrapf(domain.ErrDataIntegrity, "dequeued job %s has no record", jobID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "mark in progress")
	}
	if job.Status == domain.Complete {
		log.Info("job already complete, recomputing")
	}

	rng, err := job.Range()
	if err != nil {
		return nil, errors.Wrapf(domain.ErrDataIntegrity, "job %s has invalid range: %v", jobID, err)
	}

	ids, err := p.resolve(ctx, rng)
	if err != nil {
		return nil, err
	}
	log.Info("processing job",
		zap.String("range_start", job.RangeStart),
		zap.String("range_end", job.RangeEnd),
		zap.Int("genes", len(ids)))

	summary := domain.NewSummary()
	for _, id := range ids {
		t, reason, err := p.approvalDate(ctx, id)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			metrics.RecordsSkipped.WithLabelValues(reason).Inc()
			log.Warn("skipping gene", zap.String("gene_id", id), zap.String("reason", reason))
			continue
		}
		summary.Add(t)
	}
	result := summary.Result()

	if err := p.results.SaveResult(ctx, jobID, result); err != nil {
		return nil, errors.Wrap(err, "save result")
	}
	if _, err := p.jobs.AdvanceStatus(ctx, jobID, domain.Complete); err != nil {
		return nil, errors.Wrap(err, "mark complete")
	}
	log.Info("job complete", zap.Int("total_records", result.TotalRecords))
	return result, nil
}

// resolve returns the gene ids inside rng in numeric order.
func (p *Processor) resolve(ctx context.Context, rng domain.Range) ([]string, error) {
	all, err := p.genes.GeneIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list genes")
	}
	type entry struct {
		id  string
		num int64
	}
	var in []entry
	for _, id := range all {
		if !rng.Contains(id) {
			continue
		}
		g, _ := domain.ParseGeneID(id)
		in = append(in, entry{id, g.Number})
	}
	sort.Slice(in, func(i, j int) bool {
		if in[i].num != in[j].num {
			return in[i].num < in[j].num
		}
		return in[i].id < in[j].id
	})
	ids := make([]string, len(in))
	for i, e := range in {
		ids[i] = e.id
	}
	return ids, nil
}

// approvalDate returns the parsed date, or a skip reason when the record
// cannot contribute. Only store failures are errors.
func (p *Processor) approvalDate(ctx context.Context, id string) (time.Time, string, error) {
	g, err := p.genes.GetGene(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return time.Time{}, skipMissing, nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		return time.Time{}, "", errors.Wrapf(err, "gene %s", id)
	case err != nil:
		// undecodable document
		return time.Time{}, skipUnparseable, nil
	}
	t, err := domain.ParseDate(g.DateApproved)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyDate) {
			return time.Time{}, skipEmptyDate, nil
		}
		return time.Time{}, skipUnparseable, nil
	}
	return t, "", nil
}
