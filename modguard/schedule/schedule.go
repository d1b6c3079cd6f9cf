package schedule

import (
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Key identifies a deferred task. At most one task per key is pending at a time.
type Key struct {
	Kind    string
	Channel string
	Actor   string
}

func (k Key) String() string {
	return k.Kind + "/" + k.Channel + "/" + k.Actor
}

// Scheduler runs deferred tasks. Task functions must be idempotent: they may find that the state
// they captured was already changed by some other path, and should then do nothing.
type Scheduler interface {
	// Schedule arranges for fn to run after delay. Returns false, without scheduling, if a task
	// with the same key is still pending.
	Schedule(key Key, delay time.Duration, fn func()) bool
	Pending(key Key) bool
	// Stop cancels all pending tasks.
	Stop()
}

// TimerScheduler runs each task on its own runtime timer.
type TimerScheduler struct {
	pending *xsync.MapOf[Key, *time.Timer]
}

var _ Scheduler = (*TimerScheduler)(nil)

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		pending: xsync.NewMapOf[Key, *time.Timer](),
	}
}

func (s *TimerScheduler) Schedule(key Key, delay time.Duration, fn func()) bool {
	scheduled := false
	s.pending.Compute(key, func(old *time.Timer, loaded bool) (*time.Timer, bool) {
		if loaded {
			return old, false
		}
		scheduled = true
		var timer *time.Timer
		timer = time.AfterFunc(delay, func() {
			// only clear our own entry
			s.pending.Compute(key, func(cur *time.Timer, loaded bool) (*time.Timer, bool) {
				if loaded && cur == timer {
					return nil, true
				}
				return cur, !loaded
			})
			fn()
		})
		return timer, false
	})
	return scheduled
}

func (s *TimerScheduler) Pending(key Key) bool {
	_, ok := s.pending.Load(key)
	return ok
}

func (s *TimerScheduler) Len() int {
	return s.pending.Size()
}

func (s *TimerScheduler) Stop() {
	s.pending.Range(func(key Key, timer *time.Timer) bool {
		timer.Stop()
		s.pending.Delete(key)
		return true
	})
}

// ManualScheduler only runs tasks when Advance is called. Used for deterministic tests.
type ManualScheduler struct {
	lk    sync.Mutex
	now   time.Time
	seq   int
	tasks map[Key]*manualTask
}

type manualTask struct {
	due time.Time
	seq int
	fn  func()
}

var _ Scheduler = (*ManualScheduler)(nil)

func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{
		now:   start,
		tasks: make(map[Key]*manualTask),
	}
}

func (s *ManualScheduler) Schedule(key Key, delay time.Duration, fn func()) bool {
	s.lk.Lock()
	defer s.lk.Unlock()
	if _, ok := s.tasks[key]; ok {
		return false
	}
	s.seq++
	s.tasks[key] = &manualTask{due: s.now.Add(delay), seq: s.seq, fn: fn}
	return true
}

func (s *ManualScheduler) Pending(key Key) bool {
	s.lk.Lock()
	defer s.lk.Unlock()
	_, ok := s.tasks[key]
	return ok
}

func (s *ManualScheduler) Len() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.tasks)
}

func (s *ManualScheduler) Stop() {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.tasks = make(map[Key]*manualTask)
}

func (s *ManualScheduler) Now() time.Time {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.now
}

// Advance moves the clock forward and runs every task now due, in due order. Tasks are run
// without the scheduler lock held, so they may schedule further tasks. Returns the number of
// tasks run.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.lk.Lock()
	s.now = s.now.Add(d)
	var due []*manualTask
	for k, task := range s.tasks {
		if !task.due.After(s.now) {
			due = append(due, task)
			delete(s.tasks, k)
		}
	}
	s.lk.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	for _, task := range due {
		task.fn()
	}
	return len(due)
}
