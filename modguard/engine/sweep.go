package engine

import (
	"context"
	"time"

	"github.com/wardenbot/warden/modguard/countstore"
	"github.com/wardenbot/warden/modguard/platform"
	"github.com/wardenbot/warden/modguard/presence"
)

type SweepResult struct {
	RatesRemoved      int
	PresenceRemoved   int
	PresenceCorrected int
}

func (eng *Engine) voice() *platform.Voice {
	return &platform.Voice{Directory: eng.Directory, Actions: eng.Actions}
}

// Sweep drops rate entries not seen for StaleAfter, and reconciles voice presence against the
// platform. Safe to run concurrently with event processing, and running it twice in a row with no
// events in between changes nothing the second time.
func (eng *Engine) Sweep(ctx context.Context) SweepResult {
	ctx, span := tracer.Start(ctx, "Sweep")
	defer span.End()

	now := eng.Now()
	var res SweepResult
	res.RatesRemoved = eng.Rates.Sweep(now, orDefault(eng.StaleAfter, DefaultStaleAfter))
	sweepRemovedCount.WithLabelValues("rates").Add(float64(res.RatesRemoved))

	// without a directory there is nothing authoritative to reconcile against
	if eng.Directory != nil {
		rr := eng.Presence.Reconcile(ctx, now, eng.voice())
		res.PresenceRemoved = rr.Removed
		res.PresenceCorrected = rr.Corrected
		sweepRemovedCount.WithLabelValues("presence").Add(float64(rr.Removed))
	}

	trackedEntries.WithLabelValues("rates").Set(float64(eng.Rates.Len()))
	trackedEntries.WithLabelValues("presence").Set(float64(eng.Presence.Len()))
	eng.Logger.Debug("sweep complete", "ratesRemoved", res.RatesRemoved, "presenceRemoved", res.PresenceRemoved, "presenceCorrected", res.PresenceCorrected)
	return res
}

// countingMover counts successful idle relocations per community.
type countingMover struct {
	eng   *Engine
	inner presence.Mover
	now   time.Time
}

func (m *countingMover) Move(ctx context.Context, communityID, actorID, channelID, reason string) error {
	if err := m.inner.Move(ctx, communityID, actorID, channelID, reason); err != nil {
		actionErrorCount.WithLabelValues("move").Inc()
		return err
	}
	idleMoveCount.Inc()
	if err := m.eng.Counters.Increment(ctx, countstore.CounterMoves, communityID, m.now); err != nil {
		m.eng.Logger.Warn("failed to increment idle move counter", "community", communityID, "err", err)
	}
	return nil
}

// CheckIdle relocates idle voice actors. Returns the number moved.
func (eng *Engine) CheckIdle(ctx context.Context) int {
	if eng.Directory == nil {
		return 0
	}
	ctx, span := tracer.Start(ctx, "CheckIdle")
	defer span.End()

	now := eng.Now()
	v := eng.voice()
	return eng.Presence.CheckIdle(ctx, now, v, &countingMover{eng: eng, inner: v, now: now})
}

// RunSweeper runs Sweep every SweepInterval until ctx is done.
func (eng *Engine) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(orDefault(eng.SweepInterval, DefaultSweepInterval))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			eng.Sweep(ctx)
		}
	}
}

// RunIdleChecks runs CheckIdle every IdleCheckInterval until ctx is done.
func (eng *Engine) RunIdleChecks(ctx context.Context) error {
	ticker := time.NewTicker(orDefault(eng.IdleCheckInterval, DefaultIdleCheckInterval))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := eng.CheckIdle(ctx); n > 0 {
				eng.Logger.Info("relocated idle voice actors", "count", n)
			}
		}
	}
}
