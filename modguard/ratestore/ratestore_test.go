package ratestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestWindowRollover(t *testing.T) {
	assert := assert.New(t)
	tr := NewTracker()
	interval := 3 * time.Second

	res := tr.RecordAndCheck("ch1", "a1", t0, 1, interval)
	assert.False(res.Violation)
	assert.Equal(1, res.Count)

	res = tr.RecordAndCheck("ch1", "a1", t0.Add(4*time.Second), 1, interval)
	assert.False(res.Violation)
	assert.Equal(1, res.Count)

	st, ok := tr.Get("ch1", "a1")
	assert.True(ok)
	assert.Equal(t0.Add(4*time.Second), st.WindowStart)

	// exactly on the interval boundary is still the same window
	res = tr.RecordAndCheck("ch1", "a1", t0.Add(7*time.Second), 1, interval)
	assert.True(res.Violation)
	assert.Equal(2, res.Count)
}

func TestStrictThreshold(t *testing.T) {
	assert := assert.New(t)
	tr := NewTracker()
	interval := 3 * time.Second

	res := tr.RecordAndCheck("ch1", "a1", t0, 1, interval)
	assert.False(res.Violation)

	res = tr.RecordAndCheck("ch1", "a1", t0.Add(time.Second), 1, interval)
	assert.True(res.Violation)
	assert.Equal(2, res.Count)

	// window is not reset by a violation
	res = tr.RecordAndCheck("ch1", "a1", t0.Add(2*time.Second), 1, interval)
	assert.True(res.Violation)
	assert.Equal(3, res.Count)

	// keys are independent
	res = tr.RecordAndCheck("ch2", "a1", t0.Add(2*time.Second), 1, interval)
	assert.False(res.Violation)
	res = tr.RecordAndCheck("ch1", "a2", t0.Add(2*time.Second), 1, interval)
	assert.False(res.Violation)
	assert.Equal(4, tr.Len())
}

func TestBoundaryBurst(t *testing.T) {
	assert := assert.New(t)
	tr := NewTracker()
	interval := 10 * time.Second

	// 5 at the very end of one window and 5 at the start of the next: never a violation
	for i := 0; i < 5; i++ {
		res := tr.RecordAndCheck("ch1", "a1", t0.Add(time.Duration(i)*time.Millisecond), 5, interval)
		assert.False(res.Violation)
	}
	start := t0.Add(10*time.Second + 10*time.Millisecond)
	for i := 0; i < 5; i++ {
		res := tr.RecordAndCheck("ch1", "a1", start.Add(time.Duration(i)*time.Millisecond), 5, interval)
		assert.False(res.Violation)
	}
}

func TestMuteSuppression(t *testing.T) {
	assert := assert.New(t)
	tr := NewTracker()
	interval := 3 * time.Second

	tr.RecordAndCheck("ch1", "a1", t0, 1, interval)
	res := tr.RecordAndCheck("ch1", "a1", t0.Add(time.Second), 1, interval)
	assert.True(res.Violation)
	assert.Equal(1, tr.AddWarning(res.State))

	epoch, ok := tr.MarkMuted(res.State)
	assert.True(ok)
	_, ok = tr.MarkMuted(res.State)
	assert.False(ok)

	for i := 0; i < 10; i++ {
		r := tr.RecordAndCheck("ch1", "a1", t0.Add(2*time.Second), 1, interval)
		assert.False(r.Violation)
		assert.Nil(r.State)
	}
	st, _ := tr.Get("ch1", "a1")
	assert.Equal(2, st.Count)
	assert.Equal(1, st.Warnings)
	assert.True(st.Muted)

	assert.True(tr.ReleaseMute(res.State, epoch))
	st, _ = tr.Get("ch1", "a1")
	assert.False(st.Muted)
	assert.Equal(0, st.Warnings)

	// second completion is a no-op
	assert.False(tr.ReleaseMute(res.State, epoch))
}

func TestReleaseAfterManualReset(t *testing.T) {
	assert := assert.New(t)
	tr := NewTracker()

	res := tr.RecordAndCheck("ch1", "a1", t0, 0, time.Second)
	tr.AddWarning(res.State)
	epoch, _ := tr.MarkMuted(res.State)

	assert.True(tr.Reset("ch1", "a1"))
	assert.False(tr.Reset("ch1", "nobody"))

	// re-muted before the old timer fires: the old timer must not release the new mute
	tr.AddWarning(res.State)
	epoch2, ok := tr.MarkMuted(res.State)
	assert.True(ok)
	assert.NotEqual(epoch, epoch2)
	assert.False(tr.ReleaseMute(res.State, epoch))
	st, _ := tr.Get("ch1", "a1")
	assert.True(st.Muted)
	assert.True(tr.ReleaseMute(res.State, epoch2))
}

func TestRevertMute(t *testing.T) {
	assert := assert.New(t)
	tr := NewTracker()

	res := tr.RecordAndCheck("ch1", "a1", t0, 0, time.Second)
	tr.AddWarning(res.State)
	epoch, _ := tr.MarkMuted(res.State)
	tr.RevertMute(res.State, epoch)

	st, _ := tr.Get("ch1", "a1")
	assert.False(st.Muted)
	assert.Equal(1, st.Warnings)
}

func TestSweep(t *testing.T) {
	assert := assert.New(t)
	tr := NewTracker()
	stale := 5 * time.Minute

	tr.RecordAndCheck("ch1", "old", t0, 5, time.Second)
	tr.RecordAndCheck("ch1", "fresh", t0.Add(4*time.Minute), 5, time.Second)
	tr.RecordAndCheck("ch2", "old", t0, 5, time.Second)

	now := t0.Add(6 * time.Minute)
	assert.Equal(2, tr.Sweep(now, stale))
	assert.Equal(1, tr.Len())
	_, ok := tr.Get("ch1", "fresh")
	assert.True(ok)
	_, ok = tr.channels["ch2"]
	assert.False(ok)

	// idempotent
	assert.Equal(0, tr.Sweep(now, stale))
	assert.Equal(1, tr.Len())
}

func TestResetActor(t *testing.T) {
	assert := assert.New(t)
	tr := NewTracker()

	for _, ch := range []string{"ch1", "ch2"} {
		res := tr.RecordAndCheck(ch, "a1", t0, 0, time.Second)
		tr.AddWarning(res.State)
		tr.MarkMuted(res.State)
	}
	assert.Equal(2, tr.ResetActor("a1"))
	st, _ := tr.Get("ch2", "a1")
	assert.False(st.Muted)
	assert.Equal(0, st.Warnings)
}
