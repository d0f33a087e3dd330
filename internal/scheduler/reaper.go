package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SirClappington/genejobs/internal/metrics"
	"github.com/SirClappington/genejobs/internal/queue"
)

const leaderKey = "scheduler:leader"

// releaseScript drops the lock only if we still hold it.
var releaseScript = r.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Reaper returns expired queue leases to the pending list. Only the instance
// holding the leader lock does any work on a given tick.
type Reaper struct {
	rdb      *r.Client
	queue    *queue.RedisQ
	batch    int64
	lockTTL  time.Duration
	identity string
	log      *zap.Logger
	now      func() time.Time
}

func NewReaper(rdb *r.Client, q *queue.RedisQ, batch int64, lockTTL time.Duration, log *zap.Logger) *Reaper {
	host, _ := os.Hostname()
	return &Reaper{
		rdb:      rdb,
		queue:    q,
		batch:    batch,
		lockTTL:  lockTTL,
		identity: host + "-" + uuid.NewString(),
		log:      log.Named("reaper"),
		now:      time.Now,
	}
}

// Tick runs one reap pass and reports how many ids were requeued.
func (rp *Reaper) Tick(ctx context.Context) (int, error) {
	ok, err := rp.lead(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := rp.queue.RequeueExpired(ctx, rp.now(), rp.batch)
	if n > 0 {
		metrics.LeasesRequeued.Add(float64(n))
		rp.log.Info("requeued expired leases", zap.Int("count", n))
	}
	return n, err
}

// lead takes or refreshes the leader lock.
func (rp *Reaper) lead(ctx context.Context) (bool, error) {
	ok, err := rp.rdb.SetNX(ctx, leaderKey, rp.identity, rp.lockTTL).Result()
	if err != nil {
		return false, errors.Wrap(err, "leader lock")
	}
	if ok {
		return true, nil
	}
	holder, err := rp.rdb.Get(ctx, leaderKey).Result()
	if errors.Is(err, r.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "leader lock")
	}
	if holder != rp.identity {
		return false, nil
	}
	return true, errors.Wrap(rp.rdb.PExpire(ctx, leaderKey, rp.lockTTL).Err(), "refresh leader lock")
}

// Release gives up leadership so another instance can take over immediately.
func (rp *Reaper) Release(ctx context.Context) error {
	return errors.Wrap(releaseScript.Run(ctx, rp.rdb, []string{leaderKey}, rp.identity).Err(), "release leader lock")
}
