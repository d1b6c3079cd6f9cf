package countstore

import (
	"context"
	"sync"
	"time"
)

type memBucket struct {
	count  int
	actors map[string]struct{}
	// zero for total buckets
	expires time.Time
}

// MemCountStore keeps tallies in process memory. Hour and day buckets are dropped once their
// retention has passed, judged by the timestamps passed to Increment.
type MemCountStore struct {
	lk       sync.Mutex
	buckets  map[string]*memBucket
	latest   time.Time
	lastTrim time.Time
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		buckets: make(map[string]*memBucket),
	}
}

// bucket must be called with the lock held.
func (s *MemCountStore) bucket(name, val, period string, at time.Time) *memBucket {
	k := periodBucket(name, val, period, at)
	b, ok := s.buckets[k]
	if !ok {
		b = &memBucket{}
		s.buckets[k] = b
	}
	if ttl, ok := periodRetention[period]; ok {
		b.expires = at.Add(ttl)
	}
	return b
}

// trim must be called with the lock held. At most one sweep per hour of event time.
func (s *MemCountStore) trim(at time.Time) {
	if at.After(s.latest) {
		s.latest = at
	}
	if s.latest.Sub(s.lastTrim) < time.Hour {
		return
	}
	s.lastTrim = s.latest
	for k, b := range s.buckets {
		if !b.expires.IsZero() && b.expires.Before(s.latest) {
			delete(s.buckets, k)
		}
	}
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string, at time.Time) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if b, ok := s.buckets[periodBucket(name, val, period, at)]; ok {
		return b.count, nil
	}
	return 0, nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string, at time.Time) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.trim(at)
	for _, p := range periods {
		s.bucket(name, val, p, at).count++
	}
	return nil
}

func (s *MemCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string, at time.Time) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if b, ok := s.buckets[periodBucket(name, bucket, period, at)]; ok {
		return len(b.actors), nil
	}
	return 0, nil
}

func (s *MemCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string, at time.Time) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.trim(at)
	for _, p := range periods {
		b := s.bucket(name, bucket, p, at)
		if b.actors == nil {
			b.actors = make(map[string]struct{})
		}
		b.actors[val] = struct{}{}
	}
	return nil
}

// Len is the number of live buckets, across all counters and periods.
func (s *MemCountStore) Len() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.buckets)
}
