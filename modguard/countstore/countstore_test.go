package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, CounterMutes, "c1", PeriodTotal, t0)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, CounterMutes, "c1", t0))
	assert.NoError(cs.Increment(ctx, CounterMutes, "c1", t0))

	for _, period := range periods {
		c, err = cs.GetCount(ctx, CounterMutes, "c1", period, t0)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	// next hour and next day start fresh buckets, total keeps counting
	later := t0.Add(24 * time.Hour)
	assert.NoError(cs.Increment(ctx, CounterMutes, "c1", later))
	c, _ = cs.GetCount(ctx, CounterMutes, "c1", PeriodHour, later)
	assert.Equal(1, c)
	c, _ = cs.GetCount(ctx, CounterMutes, "c1", PeriodDay, later)
	assert.Equal(1, c)
	c, _ = cs.GetCount(ctx, CounterMutes, "c1", PeriodTotal, later)
	assert.Equal(3, c)

	c, err = cs.GetCountDistinct(ctx, DistinctMuted, "c1", PeriodTotal, t0)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.IncrementDistinct(ctx, DistinctMuted, "c1", "a1", t0))
	assert.NoError(cs.IncrementDistinct(ctx, DistinctMuted, "c1", "a1", t0))
	assert.NoError(cs.IncrementDistinct(ctx, DistinctMuted, "c1", "a2", t0))
	for _, period := range periods {
		c, err = cs.GetCountDistinct(ctx, DistinctMuted, "c1", period, t0)
		assert.NoError(err)
		assert.Equal(2, c)
	}
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = cs.Increment(ctx, CounterWarnings, "c1", t0)
				_ = cs.IncrementDistinct(ctx, DistinctMuted, "c1", "a1", t0)
			}
		}()
	}
	wg.Wait()

	c, err := cs.GetCount(ctx, CounterWarnings, "c1", PeriodTotal, t0)
	assert.NoError(err)
	assert.Equal(400, c)
	c, err = cs.GetCountDistinct(ctx, DistinctMuted, "c1", PeriodTotal, t0)
	assert.NoError(err)
	assert.Equal(1, c)
}

func TestMemCountStoreRetention(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()
	assert.NoError(cs.Increment(ctx, CounterMutes, "c1", t0))
	assert.Equal(3, cs.Len())

	// three hours on, the first hour bucket is gone but the day is still counting
	later := t0.Add(3 * time.Hour)
	assert.NoError(cs.Increment(ctx, CounterMutes, "c1", later))
	assert.Equal(3, cs.Len())
	c, _ := cs.GetCount(ctx, CounterMutes, "c1", PeriodHour, t0)
	assert.Equal(0, c)
	c, _ = cs.GetCount(ctx, CounterMutes, "c1", PeriodDay, later)
	assert.Equal(2, c)

	muchLater := t0.Add(60 * time.Hour)
	assert.NoError(cs.Increment(ctx, CounterMutes, "c1", muchLater))
	assert.Equal(3, cs.Len())
	c, _ = cs.GetCount(ctx, CounterMutes, "c1", PeriodDay, t0)
	assert.Equal(0, c)
	c, _ = cs.GetCount(ctx, CounterMutes, "c1", PeriodTotal, muchLater)
	assert.Equal(3, c)
}

func TestSummarize(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()
	assert.NoError(cs.Increment(ctx, CounterWarnings, "c1", t0.Add(-48*time.Hour)))
	assert.NoError(cs.Increment(ctx, CounterWarnings, "c1", t0))
	assert.NoError(cs.Increment(ctx, CounterMutes, "c1", t0))
	assert.NoError(cs.IncrementDistinct(ctx, DistinctMuted, "c1", "a1", t0))
	assert.NoError(cs.Increment(ctx, CounterMutes, "c2", t0))

	sum, err := Summarize(ctx, cs, "c1", t0)
	assert.NoError(err)
	assert.Equal(Summary{WarningsTotal: 2, WarningsDay: 1, MutesTotal: 1, MutesDay: 1, MutedActors: 1}, sum)
}

func TestRedisCountStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	cs, err := NewRedisCountStore("redis://localhost:6379/0")
	if err != nil {
		t.Fatal(err)
	}

	before, err := cs.GetCount(ctx, CounterMutes, "live-test", PeriodTotal, t0)
	assert.NoError(err)
	assert.NoError(cs.Increment(ctx, CounterMutes, "live-test", t0))
	after, err := cs.GetCount(ctx, CounterMutes, "live-test", PeriodTotal, t0)
	assert.NoError(err)
	assert.Equal(before+1, after)
}
