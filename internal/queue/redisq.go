package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"
)

// requeueScript puts an in-flight id back on the pending list only if it is
// still in flight, so a concurrent Ack wins.
var requeueScript = r.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) > 0 then
  redis.call('LPUSH', KEYS[2], ARGV[1])
  redis.call('ZREM', KEYS[3], ARGV[1])
  return 1
end
redis.call('ZREM', KEYS[3], ARGV[1])
return 0
`)

// RedisQ is a reliable list queue: pending ids live in queue:<name>, handed
// out ids move to processing:<name> and hold a lease in leases:<name> until acked.
type RedisQ struct {
	rdb        *r.Client
	name       string
	visibility time.Duration
	now        func() time.Time
}

var _ Queue = (*RedisQ)(nil)

func NewRedis(rdb *r.Client, name string, visibility time.Duration) *RedisQ {
	return &RedisQ{rdb: rdb, name: name, visibility: visibility, now: time.Now}
}

func (q *RedisQ) pendingKey() string    { return "queue:" + q.name }
func (q *RedisQ) processingKey() string { return "processing:" + q.name }
func (q *RedisQ) leasesKey() string     { return "leases:" + q.name }

func (q *RedisQ) Enqueue(ctx context.Context, jobID string) error {
	return errors.Wrap(q.rdb.LPush(ctx, q.pendingKey(), jobID).Err(), "enqueue")
}

func (q *RedisQ) Dequeue(ctx context.Context, block time.Duration) (string, error) {
	id, err := q.rdb.BLMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT", block).Result()
	if errors.Is(err, r.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", errors.Wrap(err, "dequeue")
	}
	deadline := q.now().Add(q.visibility).Unix()
	// a failed lease write is repaired by RequeueExpired; the delivery stands
	_ = q.rdb.ZAdd(ctx, q.leasesKey(), r.Z{Score: float64(deadline), Member: id}).Err()
	return id, nil
}

// Ack drops one in-flight entry for jobID and its lease. Leases are keyed by
// job id, not by delivery: if an expired lease was requeued and handed out
// again, a late Ack from the first consumer also clears the second
// delivery's entry. That delivery is then no longer reaped if its consumer
// dies, so callers must treat processing as idempotent and a job as possibly
// left in_progress.
func (q *RedisQ) Ack(ctx context.Context, jobID string) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.processingKey(), 1, jobID)
	pipe.ZRem(ctx, q.leasesKey(), jobID)
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "ack")
}

// Depth reports the number of pending and in-flight ids.
func (q *RedisQ) Depth(ctx context.Context) (pending, inflight int64, err error) {
	pipe := q.rdb.Pipeline()
	p := pipe.LLen(ctx, q.pendingKey())
	f := pipe.LLen(ctx, q.processingKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, errors.Wrap(err, "depth")
	}
	return p.Val(), f.Val(), nil
}

// RequeueExpired returns in-flight ids whose lease ran out to the pending
// list. In-flight ids without a lease get one, so they expire on the next
// pass instead of being stranded.
func (q *RedisQ) RequeueExpired(ctx context.Context, now time.Time, batch int64) (int, error) {
	inflight, err := q.rdb.LRange(ctx, q.processingKey(), 0, -1).Result()
	if err != nil {
		return 0, errors.Wrap(err, "list in-flight")
	}
	if len(inflight) > 0 {
		deadline := float64(now.Add(q.visibility).Unix())
		pipe := q.rdb.Pipeline()
		for _, id := range inflight {
			pipe.ZAddNX(ctx, q.leasesKey(), r.Z{Score: deadline, Member: id})
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, errors.Wrap(err, "lease orphans")
		}
	}

	ids, err := q.rdb.ZRangeByScore(ctx, q.leasesKey(), &r.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", now.Unix()), Offset: 0, Count: batch,
	}).Result()
	if err != nil || len(ids) == 0 {
		return 0, errors.Wrap(err, "expired leases")
	}

	moved := 0
	keys := []string{q.processingKey(), q.pendingKey(), q.leasesKey()}
	for _, id := range ids {
		n, err := requeueScript.Run(ctx, q.rdb, keys, id).Int()
		if err != nil {
			return moved, errors.Wrapf(err, "requeue %s", id)
		}
		moved += n
	}
	return moved, nil
}
