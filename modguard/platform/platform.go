// Package platform is the boundary between the moderation engine and the chat platform: actions
// the engine takes (timeouts, message purges, voice moves, notices) and the lookups it needs
// (community owner, idle channel, member roles and voice state).
package platform

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the community, member, channel or message does not exist.
	ErrNotFound = errors.New("platform: not found")
	// ErrPermission is returned when the bot lacks the rights for an action.
	ErrPermission = errors.New("platform: missing permissions")
)

type Community struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	// empty if the community has no idle channel configured
	IdleChannelID string `json:"idleChannelId,omitempty"`
}

type Member struct {
	CommunityID string `json:"communityId"`
	ActorID     string `json:"actorId"`
	// current voice channel, empty if not connected
	ChannelID string `json:"channelId,omitempty"`
	Admin     bool   `json:"admin"`
	Bot       bool   `json:"bot"`
}

// ActionExecutor carries out moderation actions on the platform.
type ActionExecutor interface {
	Timeout(ctx context.Context, communityID, actorID string, d time.Duration, reason string) error
	RemoveTimeout(ctx context.Context, communityID, actorID, reason string) error
	// PurgeMessages deletes up to limit of the actor's messages in a channel, sent at or after
	// since. Returns the number deleted.
	PurgeMessages(ctx context.Context, channelID, actorID string, since time.Time, limit int) (int, error)
	Move(ctx context.Context, communityID, actorID, channelID, reason string) error
}

// Messenger posts and retracts plain channel messages.
type Messenger interface {
	SendChannelMessage(ctx context.Context, channelID, content string) (string, error)
	DeleteChannelMessage(ctx context.Context, channelID, messageID string) error
}

type Directory interface {
	LookupCommunity(ctx context.Context, communityID string) (*Community, error)
	LookupMember(ctx context.Context, communityID, actorID string) (*Member, error)
}
