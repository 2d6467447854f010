package chatstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

const (
	DefaultTTL     = 24 * time.Hour
	DefaultMaxKeep = 500
)

// Redis keeps one list per match, trimmed to MaxKeep entries and expiring
// TTL after the last message.
type Redis struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	maxKeep int64
}

// NewRedis connects using a redis:// URL and pings once.
func NewRedis(ctx context.Context, rawURL, session string) (*Redis, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, session), nil
}

// NewRedisWithClient scopes keys by session so two clients sharing a redis
// instance keep separate histories.
func NewRedisWithClient(rdb *redis.Client, session string) *Redis {
	return &Redis{
		rdb:     rdb,
		prefix:  "quoridor:chat:" + session + ":",
		ttl:     DefaultTTL,
		maxKeep: DefaultMaxKeep,
	}
}

func (r *Redis) key(matchID string) string { return r.prefix + matchID }

func (r *Redis) Append(ctx context.Context, matchID string, msg types.ChatMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	k := r.key(matchID)
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, k, raw)
		p.LTrim(ctx, k, -r.maxKeep, -1)
		p.Expire(ctx, k, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("chat append %s: %w", matchID, err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, matchID string) ([]types.ChatMessage, error) {
	raws, err := r.rdb.LRange(ctx, r.key(matchID), 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat list %s: %w", matchID, err)
	}
	out := make([]types.ChatMessage, 0, len(raws))
	for _, raw := range raws {
		var m types.ChatMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Redis) Clear(ctx context.Context, matchID string) error {
	return r.rdb.Del(ctx, r.key(matchID)).Err()
}

func (r *Redis) Close() error { return r.rdb.Close() }
