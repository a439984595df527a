package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const bucketPrefix = "rl:bucket:"

// takeScript atomically reserves a slot: unknown buckets allow, expired
// buckets are dropped and allow, otherwise decrement remaining or report
// the milliseconds until reset.
var takeScript = goredis.NewScript(`
local remaining = redis.call("HGET", KEYS[1], "remaining")
if remaining == false then
    return 0
end
local reset = tonumber(redis.call("HGET", KEYS[1], "reset"))
local now = tonumber(ARGV[1])
if now >= reset then
    redis.call("DEL", KEYS[1])
    return 0
end
if tonumber(remaining) > 0 then
    redis.call("HINCRBY", KEYS[1], "remaining", -1)
    return 0
end
return reset - now
`)

// RedisStore shares bucket state between processes running against the
// same account, so a fleet of workers respects one combined budget.
type RedisStore struct {
	rdb *goredis.Client
}

// NewRedisStore creates a store from a Redis URL and verifies the
// connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) Take(ctx context.Context, key string) (time.Duration, error) {
	waitMs, err := takeScript.Run(ctx, s.rdb,
		[]string{bucketPrefix + key}, time.Now().UnixMilli()).Int64()
	if err != nil {
		return 0, fmt.Errorf("taking bucket slot: %w", err)
	}
	return time.Duration(waitMs) * time.Millisecond, nil
}

func (s *RedisStore) Update(ctx context.Context, key string, b Bucket) error {
	rkey := bucketPrefix + key
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, rkey,
		"remaining", b.Remaining,
		"limit", b.Limit,
		"reset", b.ResetAt.UnixMilli(),
	)
	if ttl := time.Until(b.ResetAt); ttl > 0 {
		pipe.PExpire(ctx, rkey, ttl)
	} else {
		pipe.Del(ctx, rkey)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("updating bucket: %w", err)
	}
	return nil
}
