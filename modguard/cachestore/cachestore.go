package cachestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_cache_lookups",
	Help: "Cache lookups, by store, namespace and result",
}, []string{"store", "namespace", "result"})

func observeLookup(store, name string, hit bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	cacheLookups.WithLabelValues(store, name, result).Inc()
}

// entryKey joins a namespace and key. Keys may themselves contain slashes ("c1/a1"), which is fine
// since namespaces never do.
func entryKey(name, key string) string {
	return name + "/" + key
}

type CacheStore interface {
	// Get returns ok=false on a cache miss.
	Get(ctx context.Context, name, key string) (val string, ok bool, err error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

// GetJSON reads and decodes a cached value. A value that fails to decode is purged and reported
// as a miss.
func GetJSON[T any](ctx context.Context, cs CacheStore, name, key string) (*T, error) {
	raw, ok, err := cs.Get(ctx, name, key)
	if err != nil || !ok {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		if perr := cs.Purge(ctx, name, key); perr != nil {
			return nil, fmt.Errorf("purging undecodable cache entry %s/%s: %w", name, key, perr)
		}
		return nil, nil
	}
	return &out, nil
}

func SetJSON[T any](ctx context.Context, cs CacheStore, name, key string, val *T) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return cs.Set(ctx, name, key, string(b))
}
