package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/SirClappington/genejobs/internal/domain"
)

// PGStore keeps jobs and results in Postgres (source of truth when configured).
type PGStore struct{ db *pgxpool.Pool }

var _ Store = (*PGStore)(nil)

func NewPostgres(db *pgxpool.Pool) *PGStore { return &PGStore{db} }

func (s *PGStore) CreateJob(ctx context.Context, j *domain.Job) error {
	_, err := s.db.Exec(ctx, `insert into jobs(
id, status, range_start, range_end, created_at, updated_at
) values ($1,$2,$3,$4,$5,$6)`,
		j.ID, j.Status, j.RangeStart, j.RangeEnd, j.CreatedAt, j.UpdatedAt,
	)
	return domain.NewStoreError("create job", err)
}

func (s *PGStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return scanJob(s.db.QueryRow(ctx, `select id, status, range_start, range_end, created_at, updated_at
from jobs where id = $1`, id), id)
}

func (s *PGStore) ListJobIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `select id from jobs order by id`)
	if err != nil {
		return nil, domain.NewStoreError("list jobs", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, domain.NewStoreError("list jobs", err)
	}
	return ids, nil
}

func (s *PGStore) AdvanceStatus(ctx context.Context, id string, next domain.Status) (*domain.Job, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.NewStoreError("advance status", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	job, err := scanJob(tx.QueryRow(ctx, `select id, status, range_start, range_end, created_at, updated_at
from jobs where id = $1 for update`, id), id)
	if err != nil {
		return nil, err
	}
	status, err := job.Status.Transition(next)
	if err != nil {
		return nil, err
	}
	if status == job.Status {
		return job, nil
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `update jobs set status = $2, updated_at = $3 where id = $1`,
		id, job.Status, job.UpdatedAt); err != nil {
		return nil, domain.NewStoreError("advance status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.NewStoreError("advance status", err)
	}
	return job, nil
}

func (s *PGStore) SaveResult(ctx context.Context, jobID string, result *domain.Result) error {
	b, err := result.Marshal()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `insert into results(job_id, summary, updated_at) values ($1, $2, now())
on conflict (job_id) do update set summary = excluded.summary, updated_at = excluded.updated_at`,
		jobID, b)
	return domain.NewStoreError("save result", err)
}

func (s *PGStore) GetResult(ctx context.Context, jobID string) (*domain.Result, error) {
	var b []byte
	err := s.db.QueryRow(ctx, `select summary from results where job_id = $1`, jobID).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "result %s", jobID)
	}
	if err != nil {
		return nil, domain.NewStoreError("get result", err)
	}
	return domain.UnmarshalResult(b)
}

func (s *PGStore) Ping(ctx context.Context) error {
	return domain.NewStoreError("ping postgres", s.db.Ping(ctx))
}

func scanJob(row pgx.Row, id string) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(&j.ID, &j.Status, &j.RangeStart, &j.RangeEnd, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, domain.NewStoreError("get job", err)
	}
	return &j, nil
}
