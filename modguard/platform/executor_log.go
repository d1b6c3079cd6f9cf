package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// LogExecutor performs no platform actions, only logs them. Used in read-only mode.
type LogExecutor struct {
	Logger *slog.Logger

	msgSeq atomic.Int64
}

var (
	_ ActionExecutor = (*LogExecutor)(nil)
	_ Messenger      = (*LogExecutor)(nil)
)

func NewLogExecutor(logger *slog.Logger) *LogExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExecutor{Logger: logger.With("component", "readonly-executor")}
}

func (e *LogExecutor) Timeout(ctx context.Context, communityID, actorID string, d time.Duration, reason string) error {
	e.Logger.Info("skipping timeout (read-only)", "community", communityID, "actor", actorID, "duration", d, "reason", reason)
	return nil
}

func (e *LogExecutor) RemoveTimeout(ctx context.Context, communityID, actorID, reason string) error {
	e.Logger.Info("skipping timeout removal (read-only)", "community", communityID, "actor", actorID, "reason", reason)
	return nil
}

func (e *LogExecutor) PurgeMessages(ctx context.Context, channelID, actorID string, since time.Time, limit int) (int, error) {
	e.Logger.Info("skipping message purge (read-only)", "channel", channelID, "actor", actorID, "since", since, "limit", limit)
	return 0, nil
}

func (e *LogExecutor) Move(ctx context.Context, communityID, actorID, channelID, reason string) error {
	e.Logger.Info("skipping voice move (read-only)", "community", communityID, "actor", actorID, "channel", channelID, "reason", reason)
	return nil
}

func (e *LogExecutor) SendChannelMessage(ctx context.Context, channelID, content string) (string, error) {
	id := fmt.Sprintf("readonly-%d", e.msgSeq.Add(1))
	e.Logger.Info("skipping channel message (read-only)", "channel", channelID, "content", content, "id", id)
	return id, nil
}

func (e *LogExecutor) DeleteChannelMessage(ctx context.Context, channelID, messageID string) error {
	e.Logger.Info("skipping message delete (read-only)", "channel", channelID, "message", messageID)
	return nil
}
