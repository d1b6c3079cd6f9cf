package auditstore

import (
	"context"
	"sort"
	"time"
)

const (
	TypeTimeout   = "timeout"
	TypeUntimeout = "untimeout"
)

// Record is one moderation action, automatic or manual. When the action was taken by the engine
// itself, ModeratorID is the engine's own identity.
type Record struct {
	Type        string `json:"type"`
	ActorID     string `json:"actorId"`
	ModeratorID string `json:"moderatorId"`
	CommunityID string `json:"communityId"`
	Reason      string `json:"reason"`
	// minutes, for timed actions
	Duration *int `json:"duration,omitempty"`
	// unix milliseconds
	Timestamp int64 `json:"timestamp"`
}

func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// AuditStore persists moderation records. Append is a blocking write.
type AuditStore interface {
	Append(ctx context.Context, rec Record) error
	// ListActor returns records for an actor, newest first. An empty communityID matches all
	// communities; limit <= 0 means no limit.
	ListActor(ctx context.Context, communityID, actorID string, limit int) ([]Record, error)
}

func filterActor(recs []Record, communityID, actorID string, limit int) []Record {
	out := []Record{}
	// walk backwards so that records with equal timestamps come out most recently appended first
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		if r.ActorID != actorID {
			continue
		}
		if communityID != "" && r.CommunityID != communityID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
