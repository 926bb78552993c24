package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis.
//
// Layout, for a store created with prefix "cover:content":
//
//	cover:content:entry:<key>   value (string), with TTL
//	cover:content:tag:<tag>     set of keys carrying <tag>
//
// A tag set expires no earlier than the longest-lived entry it lists and is
// persistent while it lists an entry without expiry. A member whose entry
// has already expired is harmless: FlushByTag deletes a missing key as a
// no-op.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	name   string
}

// NewRedisStore creates a store using keys under prefix. name labels the
// store in metrics ("metadata", "content").
func NewRedisStore(redisClient *redis.Client, prefix, name string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
		name:   name,
	}
}

// setScript writes KEYS[1] = ARGV[1] with a TTL of ARGV[2] milliseconds (0
// for none) and adds ARGV[3] to the tag sets KEYS[2..].
var setScript = redis.NewScript(`
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
end
for i = 2, #KEYS do
	local existed = redis.call('EXISTS', KEYS[i])
	redis.call('SADD', KEYS[i], ARGV[3])
	if ttl > 0 then
		local current = redis.call('PTTL', KEYS[i])
		if existed == 0 or (current >= 0 and current < ttl) then
			redis.call('PEXPIRE', KEYS[i], ttl)
		end
	else
		redis.call('PERSIST', KEYS[i])
	end
end
return 1
`)

// flushScript deletes the tag set KEYS[1] and every entry it lists under the
// prefix ARGV[1], returning the number of entries deleted.
var flushScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
redis.call('DEL', KEYS[1])
local deleted = 0
for _, member in ipairs(members) do
	deleted = deleted + redis.call('DEL', ARGV[1] .. member)
end
return deleted
`)

func (s *RedisStore) entryKey(key string) string {
	return s.prefix + ":entry:" + key
}

func (s *RedisStore) tagKey(tag string) string {
	return s.prefix + ":tag:" + tag
}

// Has reports whether key exists.
func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}

	n, err := s.redis.Exists(ctx, s.entryKey(key)).Result()
	if err != nil {
		StoreErrors.WithLabelValues(s.name, "has").Inc()
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	data, err := s.redis.Get(ctx, s.entryKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		StoreErrors.WithLabelValues(s.name, "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set writes the value and its tag memberships atomically.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl < 0 {
		ttl = 0
	}

	keys := make([]string, 0, len(tags)+1)
	keys = append(keys, s.entryKey(key))
	for _, tag := range tags {
		keys = append(keys, s.tagKey(tag))
	}

	if err := setScript.Run(ctx, s.redis, keys, value, ttl.Milliseconds(), key).Err(); err != nil {
		StoreErrors.WithLabelValues(s.name, "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// FlushByTag deletes the tag set and every entry it lists in one atomic
// step, so an entry written concurrently is either flushed or keeps its
// membership in a fresh tag set.
func (s *RedisStore) FlushByTag(ctx context.Context, tag string) (int, error) {
	if tag == "" {
		return 0, ErrInvalidKey
	}

	deleted, err := flushScript.Run(ctx, s.redis, []string{s.tagKey(tag)}, s.prefix+":entry:").Int()
	if err != nil {
		StoreErrors.WithLabelValues(s.name, "flush").Inc()
		return 0, fmt.Errorf("redis flush: %w", err)
	}
	return deleted, nil
}

// Close does not close the shared Redis client; its owner does.
func (s *RedisStore) Close() error {
	return nil
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
