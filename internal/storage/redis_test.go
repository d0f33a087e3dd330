package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirClappington/genejobs/internal/domain"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	jobs := r.NewClient(&r.Options{Addr: mr.Addr(), DB: 2})
	results := r.NewClient(&r.Options{Addr: mr.Addr(), DB: 3})
	t.Cleanup(func() {
		_ = jobs.Close()
		_ = results.Close()
	})
	return NewRedis(jobs, results), mr
}

func testJob(id string) *domain.Job {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Job{ID: id, Status: domain.Submitted, RangeStart: "HGNC:5", RangeEnd: "HGNC:10", CreatedAt: now, UpdatedAt: now}
}

func TestRedisStore_CreateAndGet(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, testJob("a")))
	got, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, testJob("a"), got)

	assert.Error(t, s.CreateJob(ctx, testJob("a")), "duplicate id")

	_, err = s.GetJob(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRedisStore_ListJobIDs(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	ids, err := s.ListJobIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.CreateJob(ctx, testJob(id)))
	}
	// results live in another db and must not show up
	mr.DB(3).Set("result:zzz", "{}")

	ids, err = s.ListJobIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRedisStore_AdvanceStatus(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, testJob("a")))

	_, err := s.AdvanceStatus(ctx, "a", domain.Complete)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	job, err := s.AdvanceStatus(ctx, "a", domain.InProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.InProgress, job.Status)

	job, err = s.AdvanceStatus(ctx, "a", domain.Complete)
	require.NoError(t, err)
	assert.Equal(t, domain.Complete, job.Status)

	job, err = s.AdvanceStatus(ctx, "a", domain.InProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.Complete, job.Status, "no regression")

	stored, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.Complete, stored.Status)
	assert.Equal(t, "HGNC:5", stored.RangeStart)

	_, err = s.AdvanceStatus(ctx, "missing", domain.InProgress)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRedisStore_AdvanceStatusConcurrent(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, testJob("a")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AdvanceStatus(ctx, "a", domain.InProgress); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	job, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.InProgress, job.Status)
}

func TestRedisStore_Results(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	_, err := s.GetResult(ctx, "a")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	earliest, latest := "1/1/1986", "3/1/2013"
	res := &domain.Result{TotalRecords: 2, EarliestDate: &earliest, LatestDate: &latest, YearlyBreakdown: map[int]int{1986: 1, 2013: 1}}
	require.NoError(t, s.SaveResult(ctx, "a", res))

	got, err := s.GetResult(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, res, got)

	res.TotalRecords = 3
	res.YearlyBreakdown[2013] = 2
	require.NoError(t, s.SaveResult(ctx, "a", res))
	got, err = s.GetResult(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalRecords)
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, err := s.GetJob(context.Background(), "a")
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
	assert.True(t, errors.Is(s.Ping(context.Background()), domain.ErrStoreUnavailable))
}
