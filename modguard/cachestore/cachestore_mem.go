package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultMemCapacity = 5_000

// MemCacheStore is a bounded, process-local cache. All namespaces share one LRU and one TTL.
type MemCacheStore struct {
	entries *expirable.LRU[string, string]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	if capacity <= 0 {
		capacity = DefaultMemCapacity
	}
	return &MemCacheStore{
		entries: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	val, hit := s.entries.Get(entryKey(name, key))
	observeLookup("mem", name, hit, nil)
	return val, hit, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val string) error {
	s.entries.Add(entryKey(name, key), val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.entries.Remove(entryKey(name, key))
	return nil
}

// Len counts live entries across all namespaces.
func (s *MemCacheStore) Len() int {
	return s.entries.Len()
}
