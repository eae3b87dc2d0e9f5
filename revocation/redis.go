package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces revocation keys.
const DefaultRedisPrefix = "rv"

// revokeScript extends an entry's lifetime but never shortens it. A key with
// no expiry (PTTL -1) is left alone.
const revokeScript = `
local ttl = redis.call("PTTL", KEYS[1])
local want = tonumber(ARGV[1])
if ttl == -1 or ttl >= want then
  return 0
end
redis.call("SET", KEYS[1], "1", "PX", want)
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// RedisOption configures a [RedisStore].
type RedisOption func(*RedisStore)

// WithRedisClock injects the time source used to turn expiry instants into TTLs.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// RedisStore keeps revocation entries as Redis keys whose TTL ends at the
// token's expiry. Consume is a single SET NX, so the Redis server is the
// serialization point across every process sharing it.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore wraps client. An empty prefix selects [DefaultRedisPrefix].
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...RedisOption) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	s := &RedisStore{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Revoke sets the key with a TTL ending at expiresAt, never shortening an
// existing longer TTL.
func (s *RedisStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := revokeLua.Run(ctx, s.redis, []string{s.key(tokenID)}, ttlMillis(ttl)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Contains is a single EXISTS.
func (s *RedisStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}
	n, err := s.redis.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

// Consume claims tokenID with SETNX. Exactly one caller sees true.
func (s *RedisStore) Consume(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}
	now := s.now()
	ttl := retentionUntil(now, expiresAt).Sub(now)
	ok, err := s.redis.SetNX(ctx, s.key(tokenID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

// Ping checks connectivity to the backing Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

func ttlMillis(ttl time.Duration) int64 {
	ms := ttl.Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}
