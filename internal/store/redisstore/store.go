package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func seqKey(name string) string {
	return fmt.Sprintf("guardian:seq:%s", name)
}

// NextSeq atomically advances the named counter and returns its new value.
func (s *Store) NextSeq(ctx context.Context, name string) (int64, error) {
	return s.rdb.Incr(ctx, seqKey(name)).Result()
}

// AdvanceSeq bumps the named counter past floor so a freshly created counter
// does not collide with rows already in the table.
func (s *Store) AdvanceSeq(ctx context.Context, name string, floor int64) (int64, error) {
	return s.rdb.IncrBy(ctx, seqKey(name), floor).Result()
}
