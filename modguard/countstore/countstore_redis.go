package countstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wardenbot/warden/util"
)

const (
	redisCountPrefix    = "warden/count/"
	redisDistinctPrefix = "warden/distinct/"
)

// RedisCountStore keeps plain counters as redis integers and distinct counters as HyperLogLogs,
// so distinct counts are approximate.
type RedisCountStore struct {
	Client *redis.Client
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	rdb, err := util.OpenRedis(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCountStore{Client: rdb}, nil
}

// writeAll queues one write per period, each followed by its retention, and sends them in a
// single round-trip.
func (s *RedisCountStore) writeAll(ctx context.Context, prefix, name, val string, at time.Time, write func(pipe redis.Pipeliner, key string)) error {
	_, err := s.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range periods {
			key := prefix + periodBucket(name, val, p, at)
			write(pipe, key)
			if ttl, ok := periodRetention[p]; ok {
				pipe.Expire(ctx, key, ttl)
			}
		}
		return nil
	})
	return err
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string, at time.Time) (int, error) {
	c, err := s.Client.Get(ctx, redisCountPrefix+periodBucket(name, val, period, at)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return c, err
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string, at time.Time) error {
	return s.writeAll(ctx, redisCountPrefix, name, val, at, func(pipe redis.Pipeliner, key string) {
		pipe.Incr(ctx, key)
	})
}

func (s *RedisCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string, at time.Time) (int, error) {
	c, err := s.Client.PFCount(ctx, redisDistinctPrefix+periodBucket(name, bucket, period, at)).Result()
	if err != nil {
		return 0, err
	}
	return int(c), nil
}

func (s *RedisCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string, at time.Time) error {
	return s.writeAll(ctx, redisDistinctPrefix, name, bucket, at, func(pipe redis.Pipeliner, key string) {
		pipe.PFAdd(ctx, key, val)
	})
}
