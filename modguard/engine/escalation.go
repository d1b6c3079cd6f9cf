package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wardenbot/warden/modguard/auditstore"
	"github.com/wardenbot/warden/modguard/countstore"
	"github.com/wardenbot/warden/modguard/platform"
	"github.com/wardenbot/warden/modguard/ratestore"
	"github.com/wardenbot/warden/modguard/schedule"
	"github.com/wardenbot/warden/modguard/settings"
)

const (
	MuteReason       = "Anti-spam: Exceeded message limit"
	ManualUnmuteNote = "Manual unmute"
)

// ActionError is a platform action which could not be carried out. These are logged and counted,
// and never retried.
type ActionError struct {
	Action      string
	CommunityID string
	ActorID     string
	Err         error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed for actor %s in community %s: %v", e.Action, e.ActorID, e.CommunityID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// escalate handles one rate violation: every violation adds a warning; once warnings reach the
// threshold, and the action is mute, the actor is muted instead of warned.
func (eng *Engine) escalate(ctx context.Context, evt *MessageEvent, eff settings.Effective, st *ratestore.State) error {
	warnings := eng.Rates.AddWarning(st)
	if eff.Action == settings.ActionMute && warnings >= eff.WarningThreshold {
		return eng.mute(ctx, evt, eff, st)
	}
	eng.warn(ctx, evt, eff, warnings)
	return nil
}

func (eng *Engine) warn(ctx context.Context, evt *MessageEvent, eff settings.Effective, warnings int) {
	warningCount.Inc()
	eng.Logger.Info("warning actor", "community", evt.CommunityID, "channel", evt.ChannelID, "actor", evt.ActorID, "warnings", warnings)
	if err := eng.Counters.Increment(ctx, countstore.CounterWarnings, evt.CommunityID, evt.At); err != nil {
		eng.Logger.Warn("failed to increment warning counter", "community", evt.CommunityID, "err", err)
	}

	if eng.Messenger == nil {
		return
	}
	text := fmt.Sprintf("<@%s>, please slow down your messages! (warning %d/%d)", evt.ActorID, warnings, eff.WarningThreshold)
	msgID, err := eng.Messenger.SendChannelMessage(ctx, evt.ChannelID, text)
	if err != nil {
		notifyErrorCount.WithLabelValues("warning").Inc()
		eng.Logger.Warn("failed to send warning notice", "channel", evt.ChannelID, "actor", evt.ActorID, "err", err)
		return
	}

	channelID := evt.ChannelID
	key := schedule.Key{Kind: "retract/" + msgID, Channel: channelID, Actor: evt.ActorID}
	eng.Scheduler.Schedule(key, orDefault(eng.WarningTTL, DefaultWarningTTL), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := eng.Messenger.DeleteChannelMessage(ctx, channelID, msgID)
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			notifyErrorCount.WithLabelValues("retract").Inc()
			eng.Logger.Warn("failed to retract warning notice", "channel", channelID, "message", msgID, "err", err)
		}
	})
}

func (eng *Engine) mute(ctx context.Context, evt *MessageEvent, eff settings.Effective, st *ratestore.State) error {
	epoch, ok := eng.Rates.MarkMuted(st)
	if !ok {
		return nil
	}

	d := time.Duration(eff.MuteDurationMinutes) * time.Minute
	logger := eng.Logger.With("community", evt.CommunityID, "channel", evt.ChannelID, "actor", evt.ActorID)
	if err := eng.Actions.Timeout(ctx, evt.CommunityID, evt.ActorID, d, MuteReason); err != nil {
		// not muted after all; a later violation will try again
		eng.Rates.RevertMute(st, epoch)
		actionErrorCount.WithLabelValues("timeout").Inc()
		if errors.Is(err, platform.ErrPermission) {
			logger.Warn("cannot mute actor, insufficient permissions")
		} else {
			logger.Warn("failed to mute actor", "err", err)
		}
		return &ActionError{Action: "timeout", CommunityID: evt.CommunityID, ActorID: evt.ActorID, Err: err}
	}
	muteCount.Inc()
	logger.Info("muted actor", "minutes", eff.MuteDurationMinutes)

	if err := eng.Counters.Increment(ctx, countstore.CounterMutes, evt.CommunityID, evt.At); err != nil {
		logger.Warn("failed to increment mute counter", "err", err)
	}
	if err := eng.Counters.IncrementDistinct(ctx, countstore.DistinctMuted, evt.CommunityID, evt.ActorID, evt.At); err != nil {
		logger.Warn("failed to increment muted actor counter", "err", err)
	}

	// the unmute is keyed by epoch, so a stale timer from an earlier (manually lifted) mute does
	// not block scheduling this one
	key := schedule.Key{Kind: fmt.Sprintf("unmute/%d", epoch), Channel: evt.ChannelID, Actor: evt.ActorID}
	eng.Scheduler.Schedule(key, d, func() {
		if eng.Rates.ReleaseMute(st, epoch) {
			unmuteCount.WithLabelValues("timer").Inc()
			logger.Info("mute expired")
		} else {
			logger.Debug("mute already lifted")
		}
	})

	purged := 0
	if eff.ClearMessagesOnMute {
		n, err := eng.Actions.PurgeMessages(ctx, evt.ChannelID, evt.ActorID, evt.At.Add(-orDefault(eng.PurgeWindow, DefaultPurgeWindow)), orDefault(eng.PurgeLimit, DefaultPurgeLimit))
		if err != nil {
			actionErrorCount.WithLabelValues("purge").Inc()
			logger.Warn("failed to purge messages of muted actor", "err", err)
		} else {
			purged = n
			purgedMessageCount.Add(float64(n))
		}
	}

	until := evt.At.Add(d)
	notice := MuteNotice{
		CommunityID: evt.CommunityID,
		ChannelID:   evt.ChannelID,
		ActorID:     evt.ActorID,
		Duration:    d,
		Until:       until,
		Reason:      MuteReason,
		Purged:      purged,
	}
	if eng.Messenger != nil {
		text := fmt.Sprintf("<@%s> has been muted for %d minutes for spamming. Reason: exceeded message rate limit. Unmuted <t:%d:R>", evt.ActorID, eff.MuteDurationMinutes, until.Unix())
		if _, err := eng.Messenger.SendChannelMessage(ctx, evt.ChannelID, text); err != nil {
			notifyErrorCount.WithLabelValues("mute").Inc()
			logger.Warn("failed to send mute notice", "err", err)
		}
	}
	for _, n := range eng.Notifiers {
		if err := n.SendMute(ctx, &notice); err != nil {
			notifyErrorCount.WithLabelValues("alert").Inc()
			logger.Warn("failed to send mute alert", "err", err)
		}
	}

	minutes := eff.MuteDurationMinutes
	rec := auditstore.Record{
		Type:        auditstore.TypeTimeout,
		ActorID:     evt.ActorID,
		CommunityID: evt.CommunityID,
		Reason:      MuteReason,
		Duration:    &minutes,
		Timestamp:   evt.At.UnixMilli(),
	}
	if err := eng.RecordModAction(ctx, rec); err != nil {
		logger.Warn("failed to record mute", "err", err)
	}
	return nil
}
