package storage

import (
	"context"

	"github.com/SirClappington/genejobs/internal/domain"
)

// JobStore persists job records. Each call is atomic for its key only.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	ListJobIDs(ctx context.Context) ([]string, error)
	// AdvanceStatus applies domain.Status.Transition to the stored job and
	// returns the record as stored afterwards.
	AdvanceStatus(ctx context.Context, id string, next domain.Status) (*domain.Job, error)
}

// ResultStore persists computed summaries keyed by job id.
type ResultStore interface {
	SaveResult(ctx context.Context, jobID string, result *domain.Result) error
	GetResult(ctx context.Context, jobID string) (*domain.Result, error)
}

type Store interface {
	JobStore
	ResultStore
	Ping(ctx context.Context) error
}
