package auditstore

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/wardenbot/warden/util"
)

var redisAuditPrefix = "audit/"

// RedisAuditStore keeps one list per (community, actor), newest record at the head.
type RedisAuditStore struct {
	Client *redis.Client
}

var _ AuditStore = (*RedisAuditStore)(nil)

func NewRedisAuditStore(redisURL string) (*RedisAuditStore, error) {
	rdb, err := util.OpenRedis(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisAuditStore{Client: rdb}, nil
}

func redisAuditKey(communityID, actorID string) string {
	return redisAuditPrefix + communityID + "/" + actorID
}

func (s *RedisAuditStore) Append(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// also index the community, so actor history can be listed across communities
	multi := s.Client.TxPipeline()
	multi.LPush(ctx, redisAuditKey(rec.CommunityID, rec.ActorID), raw)
	multi.SAdd(ctx, redisAuditPrefix+"communities/"+rec.ActorID, rec.CommunityID)
	_, err = multi.Exec(ctx)
	return err
}

func (s *RedisAuditStore) ListActor(ctx context.Context, communityID, actorID string, limit int) ([]Record, error) {
	communities := []string{communityID}
	if communityID == "" {
		var err error
		communities, err = s.Client.SMembers(ctx, redisAuditPrefix+"communities/"+actorID).Result()
		if err != nil {
			return nil, err
		}
	}

	var all []Record
	for _, cid := range communities {
		vals, err := s.Client.LRange(ctx, redisAuditKey(cid, actorID), 0, -1).Result()
		if err == redis.Nil {
			continue
		} else if err != nil {
			return nil, err
		}
		// lists are newest first; filterActor expects append order
		for i := len(vals) - 1; i >= 0; i-- {
			var rec Record
			if err := json.Unmarshal([]byte(vals[i]), &rec); err != nil {
				return nil, err
			}
			all = append(all, rec)
		}
	}
	return filterActor(all, communityID, actorID, limit), nil
}
