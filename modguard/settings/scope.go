package settings

import (
	"fmt"
	"strings"
)

// Scope identifies one layer of the settings hierarchy: the global default (both fields empty),
// a community, or a channel within a community.
type Scope struct {
	Community string
	Channel   string
}

var DefaultScope = Scope{}

func CommunityScope(communityID string) Scope {
	return Scope{Community: communityID}
}

func ChannelScope(communityID, channelID string) Scope {
	return Scope{Community: communityID, Channel: channelID}
}

func (s Scope) IsDefault() bool {
	return s.Community == ""
}

func (s Scope) IsChannel() bool {
	return s.Community != "" && s.Channel != ""
}

// String renders the scope as "default", "community:<id>" or "community:<id>/channel:<id>".
func (s Scope) String() string {
	if s.IsDefault() {
		return DefaultScopeKey
	}
	if s.Channel == "" {
		return "community:" + s.Community
	}
	return "community:" + s.Community + "/channel:" + s.Channel
}

func ParseScope(raw string) (Scope, error) {
	if raw == DefaultScopeKey {
		return DefaultScope, nil
	}
	comm, chanPart, hasChan := strings.Cut(raw, "/")
	cid, ok := strings.CutPrefix(comm, "community:")
	if !ok || cid == "" || cid == DefaultScopeKey {
		return Scope{}, fmt.Errorf("invalid settings scope: %q", raw)
	}
	if !hasChan {
		return CommunityScope(cid), nil
	}
	chid, ok := strings.CutPrefix(chanPart, "channel:")
	if !ok || chid == "" {
		return Scope{}, fmt.Errorf("invalid settings scope: %q", raw)
	}
	return ChannelScope(cid, chid), nil
}

func (s Scope) validate() error {
	if s.Community == DefaultScopeKey {
		return fmt.Errorf("community ID %q is reserved", DefaultScopeKey)
	}
	if s.Community == "" && s.Channel != "" {
		return fmt.Errorf("channel scope requires a community")
	}
	return nil
}
