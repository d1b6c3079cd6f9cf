package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wardenbot/warden/modguard/auditstore"
	"github.com/wardenbot/warden/modguard/countstore"
	"github.com/wardenbot/warden/modguard/platform"
	"github.com/wardenbot/warden/modguard/presence"
	"github.com/wardenbot/warden/modguard/ratestore"
	"github.com/wardenbot/warden/modguard/schedule"
	"github.com/wardenbot/warden/modguard/settings"
)

var tracer = otel.Tracer("modguard")

const (
	DefaultStaleAfter        = 5 * time.Minute
	DefaultSweepInterval     = 10 * time.Minute
	DefaultIdleCheckInterval = time.Minute
	DefaultWarningTTL        = 5 * time.Second
	// how far back, and how many, of a muted actor's messages are purged
	DefaultPurgeWindow = 60 * time.Second
	DefaultPurgeLimit  = 10
)

// Engine ties together settings, rate tracking, escalation and presence, and carries out the
// resulting moderation actions on the platform.
//
// Settings, Rates, Presence, Actions, Audit, Counters and Scheduler must all be non-nil.
// Directory, Messenger and Notifiers are optional.
type Engine struct {
	Logger    *slog.Logger
	Settings  *settings.Manager
	Rates     *ratestore.Tracker
	Presence  *presence.Tracker
	Directory platform.Directory
	Actions   platform.ActionExecutor
	// posts warning and mute notices to the offending channel
	Messenger platform.Messenger
	// operator alerts on mutes (eg, slack)
	Notifiers []Notifier
	Audit     auditstore.AuditStore
	Counters  countstore.CountStore
	Scheduler schedule.Scheduler
	// checked in order; nil means DefaultExemptions
	Exemptions []ExemptionCheck
	// identity recorded as moderator for automatic actions
	SelfID string
	Clock  func() time.Time

	StaleAfter        time.Duration
	SweepInterval     time.Duration
	IdleCheckInterval time.Duration
	WarningTTL        time.Duration
	PurgeWindow       time.Duration
	PurgeLimit        int
}

// Now is the engine clock.
func (eng *Engine) Now() time.Time {
	if eng.Clock != nil {
		return eng.Clock()
	}
	return time.Now()
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// ProcessEvent dispatches one event from the stream.
func (eng *Engine) ProcessEvent(ctx context.Context, evt *Event) error {
	switch {
	case evt.Message != nil:
		return eng.ProcessMessage(ctx, evt.Message)
	case evt.ChannelState != nil:
		return eng.ProcessChannelState(ctx, evt.ChannelState)
	default:
		return fmt.Errorf("empty event")
	}
}

// Run processes events in arrival order until ctx is cancelled or the channel is closed. Errors
// from individual events are logged; none of them stop the loop.
func (eng *Engine) Run(ctx context.Context, events <-chan *Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := eng.ProcessEvent(ctx, evt); err != nil {
				eng.Logger.Warn("event processing failed", "kind", evt.Kind(), "err", err)
			}
		}
	}
}

// ProcessMessage runs one message through exemptions, rate tracking and escalation.
func (eng *Engine) ProcessMessage(ctx context.Context, evt *MessageEvent) error {
	// similar to an HTTP server, we want to recover any panics from event processing
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("message processing exception", "err", r, "community", evt.CommunityID, "channel", evt.ChannelID, "actor", evt.ActorID)
			eventErrorCount.WithLabelValues("message").Inc()
		}
	}()

	ctx, span := tracer.Start(ctx, "ProcessMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("community", evt.CommunityID),
		attribute.String("channel", evt.ChannelID),
	)

	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("message").Observe(time.Since(start).Seconds())
	}()
	eventProcessCount.WithLabelValues("message").Inc()

	if evt.At.IsZero() {
		evt.At = eng.Now()
	}

	eff := eng.Settings.Resolve(evt.CommunityID, evt.ChannelID)
	if !eff.Enabled {
		return nil
	}
	if ex := eng.checkExemptions(ctx, evt); ex != NotExempt {
		exemptCount.WithLabelValues(string(ex)).Inc()
		return nil
	}

	interval := time.Duration(eff.IntervalSeconds) * time.Second
	res := eng.Rates.RecordAndCheck(evt.ChannelID, evt.ActorID, evt.At, eff.MessagesPerInterval, interval)
	if !res.Violation {
		return nil
	}
	eng.Logger.Debug("message rate exceeded", "community", evt.CommunityID, "channel", evt.ChannelID, "actor", evt.ActorID, "count", res.Count, "limit", eff.MessagesPerInterval)
	violationCount.Inc()

	if err := eng.escalate(ctx, evt, eff, res.State); err != nil {
		eventErrorCount.WithLabelValues("message").Inc()
		return err
	}
	return nil
}

// ProcessChannelState feeds a voice channel state change to the presence tracker.
func (eng *Engine) ProcessChannelState(ctx context.Context, evt *ChannelStateEvent) error {
	eventProcessCount.WithLabelValues("voice").Inc()
	if evt.At.IsZero() {
		evt.At = eng.Now()
	}
	tr := eng.Presence.ChannelStateChange(evt.ActorID, evt.CommunityID, evt.Before, evt.After, evt.At)
	voiceTransitionCount.WithLabelValues(string(tr)).Inc()

	// cached voice state is stale now
	if cd, ok := eng.Directory.(*platform.CachedDirectory); ok && tr != presence.TransitionNone {
		if err := cd.PurgeMember(ctx, evt.CommunityID, evt.ActorID); err != nil {
			eng.Logger.Warn("failed to purge member cache", "community", evt.CommunityID, "actor", evt.ActorID, "err", err)
		}
	}
	return nil
}
