package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

// Counter names used by the engine. Values are community IDs.
const (
	CounterWarnings = "warnings"
	CounterMutes    = "mutes"
	CounterMoves    = "idle-moves"
	// distinct actors muted, per community
	DistinctMuted = "muted-actors"
)

// CountStore keeps per-community moderation tallies, bucketed by hour and day as well as in
// total. The at argument selects the time bucket.
type CountStore interface {
	GetCount(ctx context.Context, name, val, period string, at time.Time) (int, error)
	Increment(ctx context.Context, name, val string, at time.Time) error
	GetCountDistinct(ctx context.Context, name, bucket, period string, at time.Time) (int, error)
	IncrementDistinct(ctx context.Context, name, bucket, val string, at time.Time) error
}

var periods = []string{PeriodTotal, PeriodDay, PeriodHour}

// periodRetention is how long a bucket is kept after it was last written. Buckets are kept a
// full period past their end so the previous hour or day can still be read. Total counters never
// expire.
var periodRetention = map[string]time.Duration{
	PeriodHour: 2 * time.Hour,
	PeriodDay:  48 * time.Hour,
}

func periodBucket(name, val, period string, at time.Time) string {
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val)
	case PeriodDay:
		t := at.UTC().Format(time.DateOnly)
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	case PeriodHour:
		t := at.UTC().Format(time.RFC3339)[0:13]
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	default:
		slog.Warn("unhandled counter period", "period", period)
		return fmt.Sprintf("%s/%s", name, val)
	}
}

// Summary is the set of counters reported in a community's status.
type Summary struct {
	WarningsTotal int `json:"warningsTotal"`
	WarningsDay   int `json:"warningsDay"`
	MutesTotal    int `json:"mutesTotal"`
	MutesDay      int `json:"mutesDay"`
	MutedActors   int `json:"mutedActors"`
	IdleMoves     int `json:"idleMovesTotal"`
}

// Summarize collects the status counters for a community, stopping at the first error.
func Summarize(ctx context.Context, cs CountStore, communityID string, at time.Time) (Summary, error) {
	var out Summary
	reads := []struct {
		dst      *int
		name     string
		period   string
		distinct bool
	}{
		{&out.WarningsTotal, CounterWarnings, PeriodTotal, false},
		{&out.WarningsDay, CounterWarnings, PeriodDay, false},
		{&out.MutesTotal, CounterMutes, PeriodTotal, false},
		{&out.MutesDay, CounterMutes, PeriodDay, false},
		{&out.MutedActors, DistinctMuted, PeriodTotal, true},
		{&out.IdleMoves, CounterMoves, PeriodTotal, false},
	}
	for _, r := range reads {
		var err error
		if r.distinct {
			*r.dst, err = cs.GetCountDistinct(ctx, r.name, communityID, r.period, at)
		} else {
			*r.dst, err = cs.GetCount(ctx, r.name, communityID, r.period, at)
		}
		if err != nil {
			return out, fmt.Errorf("reading counter %s/%s: %w", r.name, r.period, err)
		}
	}
	return out, nil
}
