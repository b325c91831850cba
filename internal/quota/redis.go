package quota

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	// Minute windows keep the current and previous bucket alive.
	redisMinuteTTLSeconds = 120
	// Daily windows keep today and yesterday alive.
	redisDayTTLSeconds = 2 * 86400
)

var redisIncrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisStore is a counter store backed by Redis, for deployments where quota
// must be shared across instances. Window expiry is handled by key TTLs, so
// Sweep is a no-op.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Get returns the current count for key, 0 if absent.
func (s *RedisStore) Get(ctx context.Context, key string) (int, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("quota redis: not initialized")
	}
	raw, errGet := s.client.Get(ctx, s.buildKey(key)).Result()
	if errors.Is(errGet, redis.Nil) {
		return 0, nil
	}
	if errGet != nil {
		return 0, errGet
	}
	count, errParse := strconv.Atoi(raw)
	if errParse != nil {
		return 0, errParse
	}
	return count, nil
}

// Increment adds one to the count for key and returns the new value. The
// window TTL is set on first increment only.
func (s *RedisStore) Increment(ctx context.Context, key string) (int, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("quota redis: not initialized")
	}
	res, errEval := redisIncrScript.Run(ctx, s.client, []string{s.buildKey(key)}, windowTTLSeconds(key)).Result()
	if errEval != nil {
		return 0, errEval
	}
	count, ok := res.(int64)
	if !ok {
		switch v := res.(type) {
		case int:
			count = int64(v)
		case uint64:
			count = int64(v)
		default:
			return 0, errors.New("quota redis: unexpected response type")
		}
	}
	return int(count), nil
}

// Sweep is a no-op; Redis TTLs expire stale windows.
func (s *RedisStore) Sweep(_ context.Context) {}

// Snapshot scans all live counters under the store prefix.
func (s *RedisStore) Snapshot(ctx context.Context) (map[string]int, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("quota redis: not initialized")
	}
	out := make(map[string]int)
	iter := s.client.Scan(ctx, 0, s.buildKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()
		raw, errGet := s.client.Get(ctx, redisKey).Result()
		if errors.Is(errGet, redis.Nil) {
			continue
		}
		if errGet != nil {
			return nil, errGet
		}
		count, errParse := strconv.Atoi(raw)
		if errParse != nil {
			continue
		}
		out[strings.TrimPrefix(redisKey, s.prefix+keyDelimiter)] = count
	}
	if errIter := iter.Err(); errIter != nil {
		return nil, errIter
	}
	return out, nil
}

func (s *RedisStore) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + keyDelimiter + key
}

// windowTTLSeconds picks the TTL matching the key's window width: minute
// windows carry an integer bucket suffix, daily windows a calendar date.
func windowTTLSeconds(key string) int {
	idx := strings.LastIndex(key, keyDelimiter)
	if idx < 0 || idx == len(key)-1 {
		return redisMinuteTTLSeconds
	}
	if _, errParse := strconv.ParseInt(key[idx+1:], 10, 64); errParse == nil {
		return redisMinuteTTLSeconds
	}
	return redisDayTTLSeconds
}
