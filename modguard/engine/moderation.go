package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/wardenbot/warden/modguard/auditstore"
	"github.com/wardenbot/warden/modguard/countstore"
	"github.com/wardenbot/warden/modguard/presence"
	"github.com/wardenbot/warden/modguard/settings"
)

// RecordModAction appends a moderation record to the audit store. Automatic and manual actions
// both go through here. Missing moderator and timestamp are filled in.
func (eng *Engine) RecordModAction(ctx context.Context, rec auditstore.Record) error {
	if rec.ModeratorID == "" {
		rec.ModeratorID = eng.SelfID
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = eng.Now().UnixMilli()
	}
	if err := eng.Audit.Append(ctx, rec); err != nil {
		auditErrorCount.Inc()
		return fmt.Errorf("appending %s record for %s: %w", rec.Type, rec.ActorID, err)
	}
	modActionCount.WithLabelValues(rec.Type).Inc()
	return nil
}

// Unmute lifts a mute by hand. The platform timeout is removed, and escalation state is cleared:
// for the given channel, or for every channel if channelID is empty. Any unmute timer still
// pending for the old mute becomes a no-op.
func (eng *Engine) Unmute(ctx context.Context, communityID, channelID, actorID, moderatorID string) error {
	if communityID == "" || actorID == "" {
		return fmt.Errorf("community and actor are required")
	}
	if err := eng.Actions.RemoveTimeout(ctx, communityID, actorID, ManualUnmuteNote); err != nil {
		actionErrorCount.WithLabelValues("untimeout").Inc()
		return &ActionError{Action: "untimeout", CommunityID: communityID, ActorID: actorID, Err: err}
	}

	var cleared int
	if channelID != "" {
		if eng.Rates.Reset(channelID, actorID) {
			cleared = 1
		}
	} else {
		cleared = eng.Rates.ResetActor(actorID)
	}
	unmuteCount.WithLabelValues("manual").Inc()
	eng.Logger.Info("manual unmute", "community", communityID, "channel", channelID, "actor", actorID, "moderator", moderatorID, "cleared", cleared)

	rec := auditstore.Record{
		Type:        auditstore.TypeUntimeout,
		ActorID:     actorID,
		ModeratorID: moderatorID,
		CommunityID: communityID,
		Reason:      ManualUnmuteNote,
	}
	if err := eng.RecordModAction(ctx, rec); err != nil {
		eng.Logger.Warn("failed to record manual unmute", "actor", actorID, "err", err)
	}
	return nil
}

// History returns an actor's moderation records, newest first.
func (eng *Engine) History(ctx context.Context, communityID, actorID string, limit int) ([]auditstore.Record, error) {
	return eng.Audit.ListActor(ctx, communityID, actorID, limit)
}

// CommunityStatus is the full status report for one community.
type CommunityStatus struct {
	settings.Status
	Counters countstore.Summary `json:"counters"`
	Presence presence.Stats     `json:"presence"`
}

// Status reports settings, mitigation counters and voice presence for a community. Counter read
// failures are logged and leave the counters zeroed.
func (eng *Engine) Status(ctx context.Context, communityID string) CommunityStatus {
	now := eng.Now()
	out := CommunityStatus{
		Status:   eng.Settings.Status(communityID),
		Presence: eng.Presence.Stats(communityID, now),
	}
	sum, err := countstore.Summarize(ctx, eng.Counters, communityID, now)
	if err != nil {
		eng.Logger.Warn("failed to read mitigation counters", "community", communityID, "err", err)
	} else {
		out.Counters = sum
	}
	return out
}

// IsActionError reports whether err came from a platform action.
func IsActionError(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae)
}
