package platform

import (
	"context"
	"errors"

	"github.com/wardenbot/warden/modguard/presence"
)

// Voice adapts a Directory and ActionExecutor to the interfaces the presence tracker needs for
// idle relocation and reconciliation.
type Voice struct {
	Directory Directory
	Actions   ActionExecutor
}

var (
	_ presence.IdleChannels     = (*Voice)(nil)
	_ presence.MembershipLookup = (*Voice)(nil)
	_ presence.Mover            = (*Voice)(nil)
)

func (v *Voice) IdleChannel(ctx context.Context, communityID string) (string, error) {
	c, err := v.Directory.LookupCommunity(ctx, communityID)
	if err != nil {
		return "", err
	}
	return c.IdleChannelID, nil
}

// CurrentChannel always asks the platform directly when the directory is cached, since the
// point is to catch drift.
func (v *Voice) CurrentChannel(ctx context.Context, communityID, actorID string) (string, error) {
	dir := v.Directory
	if cd, ok := dir.(*CachedDirectory); ok {
		dir = cd.Inner
	}
	m, err := dir.LookupMember(ctx, communityID, actorID)
	if errors.Is(err, ErrNotFound) {
		return "", presence.ErrNotConnected
	}
	if err != nil {
		return "", err
	}
	if m.ChannelID == "" {
		return "", presence.ErrNotConnected
	}
	return m.ChannelID, nil
}

func (v *Voice) Move(ctx context.Context, communityID, actorID, channelID, reason string) error {
	return v.Actions.Move(ctx, communityID, actorID, channelID, reason)
}
