package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SirClappington/genejobs/internal/domain"
	"github.com/SirClappington/genejobs/internal/genes"
	"github.com/SirClappington/genejobs/internal/queue"
	"github.com/SirClappington/genejobs/internal/storage"
)

type fixture struct {
	mr    *miniredis.Miniredis
	store *storage.RedisStore
	genes *genes.RedisStore
	proc  *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := func(db int) *r.Client {
		c := r.NewClient(&r.Options{Addr: mr.Addr(), DB: db})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	f := &fixture{
		mr:    mr,
		store: storage.NewRedis(client(2), client(3)),
		genes: genes.NewRedis(client(0)),
	}
	f.proc = NewProcessor(f.store, f.store, f.genes, zap.NewNop())
	return f
}

func (f *fixture) putGenes(t *testing.T, dates map[string]string) {
	t.Helper()
	var docs []json.RawMessage
	for id, date := range dates {
		b, err := json.Marshal(map[string]string{"hgnc_id": id, "date_approved_reserved": date, "symbol": "X" + id})
		require.NoError(t, err)
		docs = append(docs, b)
	}
	_, err := f.genes.PutGenes(context.Background(), docs)
	require.NoError(t, err)
}

func (f *fixture) submit(t *testing.T, id, start, end string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, f.store.CreateJob(context.Background(), &domain.Job{
		ID: id, Status: domain.Submitted, RangeStart: start, RangeEnd: end, CreatedAt: now, UpdatedAt: now,
	}))
}

func TestProcess_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putGenes(t, map[string]string{
		"HGNC:5":  "1/1/1986",
		"HGNC:7":  "3/1/2013",
		"HGNC:10": "",
		"HGNC:4":  "1/1/1970",
		"HGNC:11": "1/1/2020",
	})
	f.submit(t, "job-1", "HGNC:5", "HGNC:10")

	res, err := f.proc.Process(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalRecords)
	assert.Equal(t, "1/1/1986", *res.EarliestDate)
	assert.Equal(t, "3/1/2013", *res.LatestDate)
	assert.Equal(t, map[int]int{1986: 1, 2013: 1}, res.YearlyBreakdown)

	job, err := f.store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Complete, job.Status)

	stored, err := f.store.GetResult(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, res, stored)
}

func TestProcess_SkipsBadRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putGenes(t, map[string]string{
		"HGNC:1": "12/7/1989",
		"HGNC:2": "1989-12-07",
		"HGNC:3": "not a date",
		"HGNC:4": "   ",
	})
	// a record that is not JSON at all
	require.NoError(t, f.mr.DB(0).Set("gene:HGNC:5", "{{"))
	f.submit(t, "job-1", "HGNC:1", "HGNC:5")

	res, err := f.proc.Process(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalRecords)
	assert.Equal(t, "12/7/1989", *res.EarliestDate)
	assert.Equal(t, "12/7/1989", *res.LatestDate)
	assert.Equal(t, map[int]int{1989: 2}, res.YearlyBreakdown)
}

func TestProcess_NoValidDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putGenes(t, map[string]string{"HGNC:1": "", "HGNC:50": "1/1/2000"})
	f.submit(t, "job-1", "HGNC:1", "HGNC:10")

	res, err := f.proc.Process(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, res.NoValidDates())
	assert.Equal(t, domain.NoValidDatesMessage, res.Message)
	assert.Nil(t, res.EarliestDate)

	job, err := f.store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Complete, job.Status)
}

func TestProcess_Redelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dates := map[string]string{}
	for i, d := range []string{"1/1/1986", "3/1/2013", "2001-05-05", "7/4/1999", "2013-01-01", "bad"} {
		dates["HGNC:"+string(rune('1'+i))] = d
	}
	f.putGenes(t, dates)
	f.submit(t, "job-1", "HGNC:1", "HGNC:9")

	_, err := f.proc.Process(ctx, "job-1")
	require.NoError(t, err)
	first, err := f.mr.DB(3).Get("result:job-1")
	require.NoError(t, err)

	// complete -> redelivered: status must not regress, blob must not change
	res, err := f.proc.Process(ctx, "job-1")
	require.NoError(t, err)
	second, err := f.mr.DB(3).Get("result:job-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	sum := 0
	for _, n := range res.YearlyBreakdown {
		sum += n
	}
	assert.Equal(t, res.TotalRecords, sum)

	job, err := f.store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Complete, job.Status)
}

func TestProcess_StuckInProgressIsReprocessed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putGenes(t, map[string]string{"HGNC:2": "1/1/1986"})
	f.submit(t, "job-1", "HGNC:1", "HGNC:3")
	_, err := f.store.AdvanceStatus(ctx, "job-1", domain.InProgress)
	require.NoError(t, err)

	res, err := f.proc.Process(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalRecords)
}

func TestProcess_MissingJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.Process(context.Background(), "ghost")
	assert.True(t, errors.Is(err, domain.ErrDataIntegrity))

	_, err = f.store.GetResult(context.Background(), "ghost")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestProcess_EqualBoundsCoversOneGene(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putGenes(t, map[string]string{"HGNC:7": "1/1/1986", "HGNC:8": "3/1/2013"})
	f.submit(t, "job-eq", "HGNC:7", "HGNC:7")

	res, err := f.proc.Process(ctx, "job-eq")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalRecords)
	assert.Equal(t, "1/1/1986", *res.EarliestDate)
	assert.Equal(t, "1/1/1986", *res.LatestDate)
	assert.Equal(t, map[int]int{1986: 1}, res.YearlyBreakdown)

	job, err := f.store.GetJob(ctx, "job-eq")
	require.NoError(t, err)
	assert.Equal(t, domain.Complete, job.Status)
}

func TestResolve_SingleGeneRange(t *testing.T) {
	f := newFixture(t)
	f.putGenes(t, map[string]string{"HGNC:7": "1/1/1986", "HGNC:70": "1/1/1986", "MGI:7": "1/1/1986"})

	ids, err := f.proc.resolve(context.Background(), domain.Range{Namespace: "HGNC", Start: 7, End: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{"HGNC:7"}, ids)

	ids, err = f.proc.resolve(context.Background(), domain.Range{Namespace: "HGNC", Start: 1, End: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"HGNC:7", "HGNC:70"}, ids)
}

func TestPool_ProcessesQueue(t *testing.T) {
	f := newFixture(t)
	f.putGenes(t, map[string]string{"HGNC:5": "1/1/1986", "HGNC:7": "3/1/2013"})

	q := queue.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		f.submit(t, id, "HGNC:1", "HGNC:10")
		require.NoError(t, q.Enqueue(ctx, id))
	}
	require.NoError(t, q.Enqueue(ctx, "ghost"))

	pool := NewPool(q, f.proc, 3, 50*time.Millisecond, zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, id := range ids {
			job, err := f.store.GetJob(context.Background(), id)
			if err != nil || job.Status != domain.Complete {
				return false
			}
		}
		return q.Len() == 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}

	for _, id := range ids {
		res, err := f.store.GetResult(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 2, res.TotalRecords)
	}
}
