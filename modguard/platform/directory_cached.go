package platform

import (
	"context"
	"log/slog"

	"github.com/wardenbot/warden/modguard/cachestore"
)

// CachedDirectory wraps a Directory with a cache. Cache failures are logged and fall through to
// the wrapped directory.
type CachedDirectory struct {
	Inner  Directory
	Cache  cachestore.CacheStore
	Logger *slog.Logger
}

var _ Directory = (*CachedDirectory)(nil)

func NewCachedDirectory(inner Directory, cache cachestore.CacheStore, logger *slog.Logger) *CachedDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDirectory{Inner: inner, Cache: cache, Logger: logger}
}

func (d *CachedDirectory) LookupCommunity(ctx context.Context, communityID string) (*Community, error) {
	cached, err := cachestore.GetJSON[Community](ctx, d.Cache, "community", communityID)
	if err != nil {
		d.Logger.Warn("community cache read failed", "community", communityID, "err", err)
	} else if cached != nil {
		return cached, nil
	}

	c, err := d.Inner.LookupCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if err := cachestore.SetJSON(ctx, d.Cache, "community", communityID, c); err != nil {
		d.Logger.Warn("community cache write failed", "community", communityID, "err", err)
	}
	return c, nil
}

func (d *CachedDirectory) LookupMember(ctx context.Context, communityID, actorID string) (*Member, error) {
	key := communityID + "/" + actorID
	cached, err := cachestore.GetJSON[Member](ctx, d.Cache, "member", key)
	if err != nil {
		d.Logger.Warn("member cache read failed", "community", communityID, "actor", actorID, "err", err)
	} else if cached != nil {
		return cached, nil
	}

	m, err := d.Inner.LookupMember(ctx, communityID, actorID)
	if err != nil {
		return nil, err
	}
	if err := cachestore.SetJSON(ctx, d.Cache, "member", key, m); err != nil {
		d.Logger.Warn("member cache write failed", "community", communityID, "actor", actorID, "err", err)
	}
	return m, nil
}

// PurgeMember drops the cached member entry, eg after a voice state event.
func (d *CachedDirectory) PurgeMember(ctx context.Context, communityID, actorID string) error {
	return d.Cache.Purge(ctx, "member", communityID+"/"+actorID)
}

func (d *CachedDirectory) PurgeCommunity(ctx context.Context, communityID string) error {
	return d.Cache.Purge(ctx, "community", communityID)
}
