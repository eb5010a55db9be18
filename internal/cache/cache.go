// Package cache wraps the redis client with the handful of operations the
// core actually needs: TTL key/value, bounded lists, sorted-set windows, and
// pub/sub, grounded on the direct *redis.Client usage previously scattered
// across internal/service (geofence.go, webhook.go, middleware/ratelimit.go).
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin, typed wrapper over a redis client.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache { return &Cache{rdb: rdb} }

// Raw exposes the underlying client for callers that need Lua scripts or
// other operations this wrapper doesn't cover (e.g. admission control).
func (c *Cache) Raw() *redis.Client { return c.rdb }

// SetJSON marshals v and stores it under key with the given TTL (0 = no expiry).
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// GetJSON loads the value at key into dest. Returns redis.Nil if absent.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete removes one or more keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// PushBounded pushes v onto the head of a list, trims it to maxLen, and (if
// ttl > 0) refreshes the key's expiry in the same pipeline. Used for
// per-device/per-subscription recent-activity lists that should age out.
func (c *Cache) PushBounded(ctx context.Context, key string, v interface{}, maxLen int64, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, maxLen-1)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// ListRange returns up to count raw JSON list entries starting at offset.
func (c *Cache) ListRange(ctx context.Context, key string, offset, count int64) ([][]byte, error) {
	vals, err := c.rdb.LRange(ctx, key, offset, offset+count-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// ZAddNow adds member to a sorted set scored by the given unix-nanosecond
// timestamp. The admission limiter does not use it; it runs its own Lua
// script against the redis client.
func (c *Cache) ZAddNow(ctx context.Context, key, member string, score float64) error {
	return c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRemoveOlderThan evicts all members scored at or below cutoff.
func (c *Cache) ZRemoveOlderThan(ctx context.Context, key string, cutoff float64) error {
	return c.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(cutoff, 'f', -1, 64)).Err()
}

// ZCount returns the cardinality of the sorted set.
func (c *Cache) ZCount(ctx context.Context, key string) (int64, error) {
	return c.rdb.ZCard(ctx, key).Result()
}

// Expire sets a TTL on an existing key (used after ZADD since sorted sets
// don't support per-call expiry).
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

// Publish fans a JSON-encoded message out on a channel.
func (c *Cache) Publish(ctx context.Context, channel string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, channel, data).Err()
}

// Subscribe returns a redis.PubSub for the given channels; caller owns its lifecycle.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}
