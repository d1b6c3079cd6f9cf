package engine

import (
	"context"
	"errors"

	"github.com/wardenbot/warden/modguard/platform"
)

// Exemption is the reason an actor is not subject to rate limiting. The empty value means the
// actor is not exempt.
type Exemption string

const (
	NotExempt   Exemption = ""
	ExemptBot   Exemption = "bot"
	ExemptOwner Exemption = "owner"
	ExemptAdmin Exemption = "admin"
)

// ExemptionCheck inspects a message and returns a non-empty Exemption if the author is exempt.
// Returning an error means "could not tell"; the actor is then not exempted by this check.
type ExemptionCheck func(ctx context.Context, eng *Engine, evt *MessageEvent) (Exemption, error)

var DefaultExemptions = []ExemptionCheck{
	BotExemption,
	OwnerExemption,
	AdminExemption,
}

func BotExemption(ctx context.Context, eng *Engine, evt *MessageEvent) (Exemption, error) {
	if evt.IsBot || (eng.SelfID != "" && evt.ActorID == eng.SelfID) {
		return ExemptBot, nil
	}
	return NotExempt, nil
}

func OwnerExemption(ctx context.Context, eng *Engine, evt *MessageEvent) (Exemption, error) {
	if eng.Directory == nil {
		return NotExempt, nil
	}
	c, err := eng.Directory.LookupCommunity(ctx, evt.CommunityID)
	if errors.Is(err, platform.ErrNotFound) {
		return NotExempt, nil
	}
	if err != nil {
		return NotExempt, err
	}
	if c.OwnerID == evt.ActorID {
		return ExemptOwner, nil
	}
	return NotExempt, nil
}

// AdminExemption trusts the admin flag on the event, and otherwise asks the directory.
func AdminExemption(ctx context.Context, eng *Engine, evt *MessageEvent) (Exemption, error) {
	if evt.IsAdmin {
		return ExemptAdmin, nil
	}
	if eng.Directory == nil {
		return NotExempt, nil
	}
	m, err := eng.Directory.LookupMember(ctx, evt.CommunityID, evt.ActorID)
	if errors.Is(err, platform.ErrNotFound) {
		return NotExempt, nil
	}
	if err != nil {
		return NotExempt, err
	}
	if m.Admin {
		return ExemptAdmin, nil
	}
	if m.Bot {
		return ExemptBot, nil
	}
	return NotExempt, nil
}

func (eng *Engine) checkExemptions(ctx context.Context, evt *MessageEvent) Exemption {
	checks := eng.Exemptions
	if checks == nil {
		checks = DefaultExemptions
	}
	for _, check := range checks {
		ex, err := check(ctx, eng, evt)
		if err != nil {
			eng.Logger.Warn("exemption check failed", "community", evt.CommunityID, "actor", evt.ActorID, "err", err)
			continue
		}
		if ex != NotExempt {
			return ex
		}
	}
	return NotExempt
}
