package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"

	"github.com/SirClappington/genejobs/internal/domain"
)

const (
	jobPrefix    = "job:"
	resultPrefix = "result:"

	maxWatchRetries = 10
)

// RedisStore keeps jobs and results in two Redis databases.
type RedisStore struct {
	jobs    *r.Client
	results *r.Client
	now     func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedis(jobs, results *r.Client) *RedisStore {
	return &RedisStore{jobs: jobs, results: results, now: time.Now}
}

func jobKey(id string) string    { return jobPrefix + id }
func resultKey(id string) string { return resultPrefix + id }

func (s *RedisStore) CreateJob(ctx context.Context, job *domain.Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "encode job")
	}
	ok, err := s.jobs.SetNX(ctx, jobKey(job.ID), b, 0).Result()
	if err != nil {
		return domain.NewStoreError("create job", err)
	}
	if !ok {
		return errors.Errorf("job %s already exists", job.ID)
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	b, err := s.jobs.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, errors.Wrapf(domain.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, domain.NewStoreError("get job", err)
	}
	return decodeJob(b)
}

func (s *RedisStore) ListJobIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.jobs.Scan(ctx, 0, jobPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), jobPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, domain.NewStoreError("list jobs", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) AdvanceStatus(ctx context.Context, id string, next domain.Status) (*domain.Job, error) {
	key := jobKey(id)
	var out *domain.Job
	txf := func(tx *r.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, r.Nil) {
			return errors.Wrapf(domain.ErrNotFound, "job %s", id)
		}
		if err != nil {
			return err
		}
		job, err := decodeJob(b)
		if err != nil {
			return err
		}
		status, err := job.Status.Transition(next)
		if err != nil {
			return err
		}
		out = job
		if status == job.Status {
			return nil
		}
		job.Status = status
		job.UpdatedAt = s.now().UTC()
		enc, err := json.Marshal(job)
		if err != nil {
			return errors.Wrap(err, "encode job")
		}
		_, err = tx.TxPipelined(ctx, func(p r.Pipeliner) error {
			p.Set(ctx, key, enc, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.jobs.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, r.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidTransition):
			return nil, err
		default:
			return nil, domain.NewStoreError("advance status", err)
		}
	}
	return nil, domain.NewStoreError("advance status", errors.Errorf("job %s: too much contention", id))
}

func (s *RedisStore) SaveResult(ctx context.Context, jobID string, result *domain.Result) error {
	b, err := result.Marshal()
	if err != nil {
		return err
	}
	return domain.NewStoreError("save result", s.results.Set(ctx, resultKey(jobID), b, 0).Err())
}

func (s *RedisStore) GetResult(ctx context.Context, jobID string) (*domain.Result, error) {
	b, err := s.results.Get(ctx, resultKey(jobID)).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, errors.Wrapf(domain.ErrNotFound, "result %s", jobID)
	}
	if err != nil {
		return nil, domain.NewStoreError("get result", err)
	}
	return domain.UnmarshalResult(b)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.jobs.Ping(ctx).Err(); err != nil {
		return domain.NewStoreError("ping jobs", err)
	}
	return domain.NewStoreError("ping results", s.results.Ping(ctx).Err())
}

func decodeJob(b []byte) (*domain.Job, error) {
	var j domain.Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, errors.Wrap(err, "decode job")
	}
	return &j, nil
}
