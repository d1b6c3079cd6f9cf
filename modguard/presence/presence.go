package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultIdleThresholdMinutes = 10
	MinIdleThresholdMinutes     = 1
	MaxIdleThresholdMinutes     = 60
)

// State is the tracked voice presence of one actor.
type State struct {
	LastActive  time.Time `json:"lastActive"`
	ChannelID   string    `json:"channelId"`
	CommunityID string    `json:"communityId"`
}

// Transition describes how a channel state change was interpreted.
type Transition string

const (
	TransitionJoin    Transition = "join"
	TransitionMove    Transition = "move"
	TransitionLeave   Transition = "leave"
	TransitionRefresh Transition = "refresh"
	TransitionNone    Transition = "none"
)

// ThresholdError is returned for an idle threshold outside the allowed range.
type ThresholdError struct {
	Minutes int
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("idle threshold must be between %d and %d minutes, got %d", MinIdleThresholdMinutes, MaxIdleThresholdMinutes, e.Minutes)
}

// Tracker keeps last-activity timestamps for actors connected to voice channels, keyed by actor.
type Tracker struct {
	Logger *slog.Logger

	lk            sync.Mutex
	actors        map[string]*State
	idleThreshold time.Duration
}

func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		Logger:        logger.With("component", "presence"),
		actors:        make(map[string]*State),
		idleThreshold: DefaultIdleThresholdMinutes * time.Minute,
	}
}

// SetIdleThreshold changes the idle threshold. Values outside [1, 60] minutes are rejected.
func (t *Tracker) SetIdleThreshold(minutes int) error {
	if minutes < MinIdleThresholdMinutes || minutes > MaxIdleThresholdMinutes {
		return &ThresholdError{Minutes: minutes}
	}
	t.lk.Lock()
	t.idleThreshold = time.Duration(minutes) * time.Minute
	t.lk.Unlock()
	t.Logger.Info("idle threshold updated", "minutes", minutes)
	return nil
}

func (t *Tracker) IdleThreshold() time.Duration {
	t.lk.Lock()
	defer t.lk.Unlock()
	return t.idleThreshold
}

// ChannelStateChange records a voice state update. An empty channel ID means "not connected".
func (t *Tracker) ChannelStateChange(actorID, communityID, before, after string, now time.Time) Transition {
	t.lk.Lock()
	defer t.lk.Unlock()

	switch {
	case before == "" && after != "":
		t.actors[actorID] = &State{LastActive: now, ChannelID: after, CommunityID: communityID}
		t.Logger.Debug("actor joined voice channel", "actor", actorID, "channel", after)
		return TransitionJoin
	case before != "" && after != "" && before != after:
		t.actors[actorID] = &State{LastActive: now, ChannelID: after, CommunityID: communityID}
		t.Logger.Debug("actor moved voice channel", "actor", actorID, "from", before, "to", after)
		return TransitionMove
	case before != "" && after == "":
		delete(t.actors, actorID)
		t.Logger.Debug("actor left voice channel", "actor", actorID, "channel", before)
		return TransitionLeave
	case before != "" && before == after:
		// mute/deafen toggles and the like count as activity
		if st, ok := t.actors[actorID]; ok {
			st.LastActive = now
		}
		return TransitionRefresh
	}
	return TransitionNone
}

// Get returns a copy of the tracked state for an actor.
func (t *Tracker) Get(actorID string) (State, bool) {
	t.lk.Lock()
	defer t.lk.Unlock()
	st, ok := t.actors[actorID]
	if !ok {
		return State{}, false
	}
	return *st, true
}

func (t *Tracker) Len() int {
	t.lk.Lock()
	defer t.lk.Unlock()
	return len(t.actors)
}

// IsIdle reports whether the actor is tracked and has been inactive for at least the threshold.
func (t *Tracker) IsIdle(actorID string, now time.Time) bool {
	t.lk.Lock()
	defer t.lk.Unlock()
	st, ok := t.actors[actorID]
	if !ok {
		return false
	}
	return now.Sub(st.LastActive) >= t.idleThreshold
}

// InactiveFor returns how long the actor has been without voice activity.
func (t *Tracker) InactiveFor(actorID string, now time.Time) (time.Duration, bool) {
	t.lk.Lock()
	defer t.lk.Unlock()
	st, ok := t.actors[actorID]
	if !ok {
		return 0, false
	}
	return now.Sub(st.LastActive), true
}

type Stats struct {
	TotalActors          int `json:"totalActors"`
	ActiveActors         int `json:"activeActors"`
	IdleActors           int `json:"idleActors"`
	IdleThresholdMinutes int `json:"idleThresholdMinutes"`
}

// Stats summarizes tracked actors for one community.
func (t *Tracker) Stats(communityID string, now time.Time) Stats {
	t.lk.Lock()
	defer t.lk.Unlock()
	out := Stats{IdleThresholdMinutes: int(t.idleThreshold / time.Minute)}
	for _, st := range t.actors {
		if st.CommunityID != communityID {
			continue
		}
		out.TotalActors++
		if now.Sub(st.LastActive) < t.idleThreshold {
			out.ActiveActors++
		} else {
			out.IdleActors++
		}
	}
	return out
}

// IdleChannels reports the designated idle-relocation channel of a community, or "" if it has
// none.
type IdleChannels interface {
	IdleChannel(ctx context.Context, communityID string) (string, error)
}

// Mover relocates an actor to another voice channel.
type Mover interface {
	Move(ctx context.Context, communityID, actorID, channelID, reason string) error
}

type candidate struct {
	actorID string
	state   *State
	seen    time.Time
	State
}

// snapshot copies the entries matching keep, remembering the live pointer and the LastActive value
// seen, so later writes can check the entry was not touched in between.
func (t *Tracker) snapshot(keep func(st *State) bool) []candidate {
	t.lk.Lock()
	defer t.lk.Unlock()
	var out []candidate
	for actor, st := range t.actors {
		if keep(st) {
			out = append(out, candidate{actorID: actor, state: st, seen: st.LastActive, State: *st})
		}
	}
	return out
}

// unchanged must be called with the lock held.
func (t *Tracker) unchanged(c candidate) bool {
	cur, ok := t.actors[c.actorID]
	return ok && cur == c.state && cur.LastActive.Equal(c.seen)
}

const idleMoveReason = "Moved to idle channel due to inactivity"

// CheckIdle relocates every actor inactive for longer than the idle threshold into their
// community's idle channel, when one exists and the actor is not already there. A relocated actor
// is treated as freshly active. Failures are logged and skipped. Returns the number of actors moved.
func (t *Tracker) CheckIdle(ctx context.Context, now time.Time, idle IdleChannels, mover Mover) int {
	threshold := t.IdleThreshold()
	cands := t.snapshot(func(st *State) bool {
		return now.Sub(st.LastActive) > threshold
	})

	moved := 0
	for _, c := range cands {
		idleChan, err := idle.IdleChannel(ctx, c.CommunityID)
		if err != nil {
			t.Logger.Warn("failed to look up idle channel", "community", c.CommunityID, "err", err)
			continue
		}
		if idleChan == "" || idleChan == c.ChannelID {
			continue
		}
		if err := mover.Move(ctx, c.CommunityID, c.actorID, idleChan, idleMoveReason); err != nil {
			t.Logger.Warn("failed to move idle actor", "actor", c.actorID, "community", c.CommunityID, "err", err)
			continue
		}
		t.Logger.Info("moved idle actor", "actor", c.actorID, "community", c.CommunityID, "channel", idleChan)
		moved++

		t.lk.Lock()
		if t.unchanged(c) {
			c.state.ChannelID = idleChan
			c.state.LastActive = now
		}
		t.lk.Unlock()
	}
	return moved
}

// ErrNotConnected is returned by a MembershipLookup when the actor is not in any voice channel of
// the community (or has left it entirely).
var ErrNotConnected = errors.New("actor not connected to voice")

// MembershipLookup reports the voice channel an actor is currently connected to, according to the
// platform.
type MembershipLookup interface {
	CurrentChannel(ctx context.Context, communityID, actorID string) (string, error)
}

type ReconcileResult struct {
	Removed   int
	Corrected int
}

// Reconcile compares every tracked actor against the platform's view of voice membership. Entries
// for actors no longer connected, or whose lookup fails, are removed; entries whose channel
// disagrees are corrected to the platform's answer. Entries touched by a new event while the
// lookup was in flight are left alone.
func (t *Tracker) Reconcile(ctx context.Context, now time.Time, lookup MembershipLookup) ReconcileResult {
	cands := t.snapshot(func(st *State) bool { return true })

	var res ReconcileResult
	for _, c := range cands {
		current, err := lookup.CurrentChannel(ctx, c.CommunityID, c.actorID)
		if err != nil && !errors.Is(err, ErrNotConnected) {
			t.Logger.Warn("voice membership lookup failed, dropping entry", "actor", c.actorID, "community", c.CommunityID, "err", err)
		}

		t.lk.Lock()
		if t.unchanged(c) {
			switch {
			case err != nil || current == "":
				delete(t.actors, c.actorID)
				res.Removed++
			case current != c.ChannelID:
				c.state.ChannelID = current
				c.state.LastActive = now
				res.Corrected++
			}
		}
		t.lk.Unlock()
	}
	if res.Removed > 0 || res.Corrected > 0 {
		t.Logger.Debug("reconciled voice presence", "removed", res.Removed, "corrected", res.Corrected)
	}
	return res
}
