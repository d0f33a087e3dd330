package genes

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"

	"github.com/SirClappington/genejobs/internal/domain"
)

const keyPrefix = "gene:"

// Store is the read side of the gene dataset used by workers.
type Store interface {
	GeneIDs(ctx context.Context) ([]string, error)
	GetGene(ctx context.Context, id string) (*domain.Gene, error)
}

// RedisStore holds one JSON document per gene under gene:<id>.
type RedisStore struct{ rdb *r.Client }

var _ Store = (*RedisStore)(nil)

func NewRedis(rdb *r.Client) *RedisStore { return &RedisStore{rdb} }

// GeneIDs scans the whole key space; the caller filters by range.
func (s *RedisStore) GeneIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, domain.NewStoreError("scan genes", err)
	}
	return ids, nil
}

func (s *RedisStore) GetGene(ctx context.Context, id string) (*domain.Gene, error) {
	b, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, errors.Wrapf(domain.ErrNotFound, "gene %s", id)
	}
	if err != nil {
		return nil, domain.NewStoreError("get gene", err)
	}
	return domain.DecodeGene(b)
}

// PutGenes writes records in one pipeline. Records without an id are
// skipped; the number written is returned.
func (s *RedisStore) PutGenes(ctx context.Context, records []json.RawMessage) (int, error) {
	pipe := s.rdb.Pipeline()
	n := 0
	for _, rec := range records {
		g, err := domain.DecodeGene(rec)
		if err != nil || g.ID == "" {
			continue
		}
		pipe.Set(ctx, keyPrefix+g.ID, []byte(rec), 0)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, domain.NewStoreError("put genes", err)
	}
	return n, nil
}

// DeleteAll removes every gene key and reports how many were removed.
func (s *RedisStore) DeleteAll(ctx context.Context) (int, error) {
	ids, err := s.GeneIDs(ctx)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}
	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, domain.NewStoreError("delete genes", err)
	}
	return int(n), nil
}
