package redis

import (
	"context"
	"dmchat/internal/core/contracts"
	"time"

	"github.com/redis/go-redis/v9"
)

const lastSeenKey = "presence:last_seen"

// RedisPresenceMirror keeps last-seen timestamps in one sorted set scored
// by unix milliseconds so other processes can read them.
type RedisPresenceMirror struct {
	rdb *redis.Client
	key string
}

func NewRedisPresenceMirror(rdb *redis.Client) *RedisPresenceMirror {
	return &RedisPresenceMirror{
		rdb: rdb,
		key: lastSeenKey,
	}
}

// Touch adds/updates userID with the given timestamp.
func (p *RedisPresenceMirror) Touch(ctx context.Context, userID string, at time.Time) error {
	return p.rdb.ZAdd(ctx, p.key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: userID,
	}).Err()
}

// LastSeen returns every mirrored user, oldest first.
func (p *RedisPresenceMirror) LastSeen(ctx context.Context) (map[string]time.Time, error) {
	members, err := p.rdb.ZRangeWithScores(ctx, p.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(members))
	for _, z := range members {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		out[id] = time.UnixMilli(int64(z.Score)).UTC()
	}
	return out, nil
}

var _ contracts.PresenceMirror = (*RedisPresenceMirror)(nil)

