package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"github.com/wardenbot/warden/util"
)

const (
	redisCachePrefix = "warden/cache/"
	// size of the in-process layer in front of redis
	localCacheSize = 5_000
)

// RedisCacheStore is a cache shared between instances, with a short-lived TinyLFU layer in each
// process. The local layer expires after a quarter of the TTL, so a purge made by another
// instance is seen within that window.
type RedisCacheStore struct {
	Client *redis.Client
	TTL    time.Duration

	layered *cache.Cache
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	rdb, err := util.OpenRedis(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCacheStore{
		Client: rdb,
		TTL:    ttl,
		layered: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(localCacheSize, max(ttl/4, time.Second)),
		}),
	}, nil
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	var val string
	err := s.layered.Get(ctx, redisCachePrefix+entryKey(name, key), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		observeLookup("redis", name, false, nil)
		return "", false, nil
	}
	observeLookup("redis", name, true, err)
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val string) error {
	return s.layered.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCachePrefix + entryKey(name, key),
		Value: val,
		TTL:   s.TTL,
	})
}

// Purge drops the entry from redis and from this process's local layer. Purging an absent key
// is not an error.
func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.layered.Delete(ctx, redisCachePrefix+entryKey(name, key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
