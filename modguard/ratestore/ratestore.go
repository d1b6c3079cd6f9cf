package ratestore

import (
	"sync"
	"time"
)

// State is the per (channel, actor) counter and escalation state.
//
// Fields are only mutated by Tracker methods, while holding the tracker lock. Callers outside this
// package receive copies (see Tracker.Get) or an opaque *State handle which they hand back to the
// tracker.
type State struct {
	Count       int
	WindowStart time.Time
	Warnings    int
	Muted       bool
	// last time an event was counted against this entry; drives garbage collection
	LastSeen time.Time

	// incremented on every mute, so a stale unmute callback can detect it no longer applies
	muteEpoch uint64
}

// Result of recording one message.
type Result struct {
	Violation bool
	Count     int
	// handle to the live state entry, for follow-up escalation calls; nil if the actor is muted
	State *State
}

// Tracker counts messages per (channel, actor) in fixed windows.
//
// The window starts at the first message and is only reset once more than the interval has
// elapsed since that start; it is never reset by a violation. This admits bursts of up to twice
// the limit across a window boundary.
type Tracker struct {
	lk       sync.Mutex
	channels map[string]map[string]*State
}

func NewTracker() *Tracker {
	return &Tracker{
		channels: make(map[string]map[string]*State),
	}
}

// RecordAndCheck counts one message and reports whether it exceeds limit messages per interval.
// Messages from a muted actor are not counted and never violate.
func (t *Tracker) RecordAndCheck(channelID, actorID string, now time.Time, limit int, interval time.Duration) Result {
	t.lk.Lock()
	defer t.lk.Unlock()

	actors, ok := t.channels[channelID]
	if !ok {
		actors = make(map[string]*State)
		t.channels[channelID] = actors
	}
	st, ok := actors[actorID]
	if !ok {
		st = &State{Count: 1, WindowStart: now, LastSeen: now}
		actors[actorID] = st
		return Result{Violation: 1 > limit, Count: 1, State: st}
	}
	if st.Muted {
		return Result{Count: st.Count}
	}

	if now.Sub(st.WindowStart) > interval {
		st.Count = 1
		st.WindowStart = now
	} else {
		st.Count++
	}
	st.LastSeen = now
	return Result{Violation: st.Count > limit, Count: st.Count, State: st}
}

// AddWarning increments the warning count for a state entry and returns the new count.
func (t *Tracker) AddWarning(st *State) int {
	t.lk.Lock()
	defer t.lk.Unlock()
	st.Warnings++
	return st.Warnings
}

// MarkMuted flags the entry as muted. It returns the mute epoch to pass to ReleaseMute, and false
// if the entry was already muted (in which case nothing changes).
func (t *Tracker) MarkMuted(st *State) (uint64, bool) {
	t.lk.Lock()
	defer t.lk.Unlock()
	if st.Muted {
		return st.muteEpoch, false
	}
	st.Muted = true
	st.muteEpoch++
	return st.muteEpoch, true
}

// ReleaseMute completes a mute: clears the muted flag and resets warnings. It is a no-op, returning
// false, if the entry is no longer muted under the given epoch (eg, it was already released
// manually, or re-muted since).
func (t *Tracker) ReleaseMute(st *State, epoch uint64) bool {
	t.lk.Lock()
	defer t.lk.Unlock()
	if !st.Muted || st.muteEpoch != epoch {
		return false
	}
	st.Muted = false
	st.Warnings = 0
	return true
}

// RevertMute undoes MarkMuted when the mute action could not be applied, leaving warnings as-is.
func (t *Tracker) RevertMute(st *State, epoch uint64) {
	t.lk.Lock()
	defer t.lk.Unlock()
	if st.Muted && st.muteEpoch == epoch {
		st.Muted = false
	}
}

// Reset clears escalation state for an actor (manual unmute). Returns false if there was no entry.
func (t *Tracker) Reset(channelID, actorID string) bool {
	t.lk.Lock()
	defer t.lk.Unlock()
	st, ok := t.channels[channelID][actorID]
	if !ok {
		return false
	}
	st.Muted = false
	st.Warnings = 0
	return true
}

// ResetActor clears escalation state for an actor in every channel. Returns the number of entries
// touched.
func (t *Tracker) ResetActor(actorID string) int {
	t.lk.Lock()
	defer t.lk.Unlock()
	n := 0
	for _, actors := range t.channels {
		if st, ok := actors[actorID]; ok {
			st.Muted = false
			st.Warnings = 0
			n++
		}
	}
	return n
}

// Get returns a copy of the state for an actor in a channel.
func (t *Tracker) Get(channelID, actorID string) (State, bool) {
	t.lk.Lock()
	defer t.lk.Unlock()
	st, ok := t.channels[channelID][actorID]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Len returns the number of tracked (channel, actor) entries.
func (t *Tracker) Len() int {
	t.lk.Lock()
	defer t.lk.Unlock()
	n := 0
	for _, actors := range t.channels {
		n += len(actors)
	}
	return n
}

// Sweep removes entries not seen for longer than staleAfter, and then any channel left empty.
// Returns the number of entries removed.
func (t *Tracker) Sweep(now time.Time, staleAfter time.Duration) int {
	t.lk.Lock()
	defer t.lk.Unlock()
	removed := 0
	for ch, actors := range t.channels {
		for actor, st := range actors {
			if now.Sub(st.LastSeen) > staleAfter {
				delete(actors, actor)
				removed++
			}
		}
		if len(actors) == 0 {
			delete(t.channels, ch)
		}
	}
	return removed
}
