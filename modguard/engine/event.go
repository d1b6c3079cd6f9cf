package engine

import (
	"time"
)

// MessageEvent is a chat message observed in a community channel.
type MessageEvent struct {
	CommunityID string    `json:"communityId"`
	ChannelID   string    `json:"channelId"`
	ActorID     string    `json:"actorId"`
	IsBot       bool      `json:"isBot,omitempty"`
	IsAdmin     bool      `json:"isAdmin,omitempty"`
	At          time.Time `json:"at,omitempty"`
}

// ChannelStateEvent is a voice state update. An empty Before or After means "not connected".
type ChannelStateEvent struct {
	CommunityID string    `json:"communityId"`
	ActorID     string    `json:"actorId"`
	Before      string    `json:"before,omitempty"`
	After       string    `json:"after,omitempty"`
	At          time.Time `json:"at,omitempty"`
}

// Event is exactly one of the event kinds.
type Event struct {
	Message      *MessageEvent
	ChannelState *ChannelStateEvent
}

func (e *Event) Kind() string {
	switch {
	case e.Message != nil:
		return "message"
	case e.ChannelState != nil:
		return "voice"
	}
	return "unknown"
}
