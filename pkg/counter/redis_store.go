package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rollover and the conditional increment must be one atomic step, so both
// live in Lua: Redis executes each script without interleaving commands
// from other clients. The hash holds the count under "c" and the period
// anchor (unix seconds) under "a"; a stale anchor resets the count before
// the operation proceeds.
var (
	redisPeekScript = redis.NewScript(`
local anchor = tonumber(ARGV[1])
local stored = tonumber(redis.call('HGET', KEYS[1], 'a') or '0')
if stored < anchor then
  redis.call('HSET', KEYS[1], 'c', 0, 'a', anchor)
  return 0
end
return tonumber(redis.call('HGET', KEYS[1], 'c') or '0')
`)

	redisIncrScript = redis.NewScript(`
local anchor = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local stored = tonumber(redis.call('HGET', KEYS[1], 'a') or '0')
if stored < anchor then
  redis.call('HSET', KEYS[1], 'c', 0, 'a', anchor)
end
local count = tonumber(redis.call('HGET', KEYS[1], 'c') or '0')
if count + 1 > limit then
  return {count, 0}
end
count = redis.call('HINCRBY', KEYS[1], 'c', 1)
return {count, 1}
`)

	redisDecrScript = redis.NewScript(`
local count = tonumber(redis.call('HGET', KEYS[1], 'c') or '0')
if count > 0 then
  redis.call('HINCRBY', KEYS[1], 'c', -1)
end
return 0
`)
)

// RedisStore is a Store backed by Redis. Suitable when counters are shared
// by several processes but do not need relational durability.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default "quota:counter" key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// NewRedisStore returns a Store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	if client == nil {
		panic("counter: redis client cannot be nil")
	}
	s := &RedisStore{
		client:    client,
		keyPrefix: "quota:counter",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) redisKey(key string, kind PeriodKind) string {
	return fmt.Sprintf("%s:%s:%s", s.keyPrefix, key, kind)
}

func (s *RedisStore) Peek(ctx context.Context, key string, kind PeriodKind, limit int64, now time.Time) (Snapshot, error) {
	if !kind.Valid() {
		return Snapshot{}, ErrUnknownPeriodKind
	}
	if limit < 0 {
		return Snapshot{}, ErrNegativeLimit
	}

	anchor := PeriodStart(kind, now).Unix()
	count, err := redisPeekScript.Run(ctx, s.client, []string{s.redisKey(key, kind)}, anchor).Int64()
	if err != nil {
		return Snapshot{}, errors.Join(ErrStoreUnavailable, err)
	}
	return snapshot(count, limit, kind, now), nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, kind PeriodKind, limit int64, now time.Time) (IncrementResult, error) {
	if !kind.Valid() {
		return IncrementResult{}, ErrUnknownPeriodKind
	}
	if limit < 0 {
		return IncrementResult{}, ErrNegativeLimit
	}

	anchor := PeriodStart(kind, now).Unix()
	res, err := redisIncrScript.Run(ctx, s.client, []string{s.redisKey(key, kind)}, anchor, limit).Int64Slice()
	if err != nil {
		return IncrementResult{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return IncrementResult{}, errors.Join(ErrStoreUnavailable, fmt.Errorf("unexpected script reply length %d", len(res)))
	}
	return IncrementResult{Count: res[0], Allowed: res[1] == 1}, nil
}

func (s *RedisStore) Decrement(ctx context.Context, key string, kind PeriodKind) error {
	if !kind.Valid() {
		return ErrUnknownPeriodKind
	}
	if err := redisDecrScript.Run(ctx, s.client, []string{s.redisKey(key, kind)}).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
