package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualScheduler(t *testing.T) {
	assert := assert.New(t)

	s := NewManualScheduler(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	k1 := Key{Kind: "unmute", Channel: "ch1", Actor: "a1"}
	k2 := Key{Kind: "unmute", Channel: "ch1", Actor: "a2"}

	var order []string
	assert.True(s.Schedule(k1, 5*time.Minute, func() { order = append(order, "a1") }))
	assert.False(s.Schedule(k1, time.Minute, func() { order = append(order, "dupe") }))
	assert.True(s.Schedule(k2, 2*time.Minute, func() { order = append(order, "a2") }))
	assert.True(s.Pending(k1))
	assert.Equal(2, s.Len())

	assert.Equal(0, s.Advance(time.Minute))
	assert.Equal(2, s.Advance(4*time.Minute))
	assert.Equal([]string{"a2", "a1"}, order)
	assert.False(s.Pending(k1))

	// key is free again once the task ran
	assert.True(s.Schedule(k1, time.Second, func() {}))
	s.Stop()
	assert.Equal(0, s.Len())
}

func TestTimerScheduler(t *testing.T) {
	assert := assert.New(t)

	s := NewTimerScheduler()
	k := Key{Kind: "warning", Channel: "ch1", Actor: "a1"}

	var fired atomic.Int32
	done := make(chan struct{})
	assert.True(s.Schedule(k, 10*time.Millisecond, func() {
		fired.Add(1)
		close(done)
	}))
	assert.False(s.Schedule(k, 10*time.Millisecond, func() { fired.Add(1) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Equal(int32(1), fired.Load())
	assert.Eventually(func() bool { return !s.Pending(k) }, time.Second, time.Millisecond)

	// cancelled tasks never run
	assert.True(s.Schedule(k, time.Hour, func() { fired.Add(1) }))
	s.Stop()
	assert.Equal(0, s.Len())
	assert.Equal(int32(1), fired.Load())
}
