package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/wardenbot/warden/util"
)

var redisSettingsKey = "warden/settings"

// RedisBackend stores the whole document as a single JSON string value, so every Save replaces it
// atomically.
type RedisBackend struct {
	Client *redis.Client
	Key    string
}

var _ Backend = (*RedisBackend)(nil)

func NewRedisBackend(redisURL string) (*RedisBackend, error) {
	rdb, err := util.OpenRedis(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisBackend{
		Client: rdb,
		Key:    redisSettingsKey,
	}, nil
}

func (b *RedisBackend) Load(ctx context.Context) (Document, error) {
	raw, err := b.Client.Get(ctx, b.Key).Bytes()
	if err == redis.Nil {
		return nil, ErrNoDocument
	} else if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing settings from redis: %w", err)
	}
	return doc, nil
}

func (b *RedisBackend) Save(ctx context.Context, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return b.Client.Set(ctx, b.Key, raw, 0).Err()
}
