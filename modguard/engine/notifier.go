package engine

import (
	"context"
	"time"
)

// MuteNotice describes an automatic mute, for operator alerting.
type MuteNotice struct {
	CommunityID string
	ChannelID   string
	ActorID     string
	Duration    time.Duration
	Until       time.Time
	Reason      string
	// number of messages purged, if clearing was enabled
	Purged int
}

// Notifier sends operator alerts about automatic actions. Failures are logged and counted by the
// engine, never retried.
type Notifier interface {
	SendMute(ctx context.Context, n *MuteNotice) error
}
