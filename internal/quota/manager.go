package quota

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// RedisConfig holds connection settings for the optional Redis backend.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Manager selects the counter store backend per request: Redis when
// configured and reachable, otherwise the in-process memory store. Redis
// failures trip a breaker so the fallback is not re-probed on every request.
type Manager struct {
	cfg            RedisConfig
	nowFn          func() time.Time
	memory         *MemoryStore
	newRedisClient RedisClientFactory

	mu           sync.Mutex
	redisStore   *RedisStore
	redisClient  *redis.Client
	breakerUntil time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(cfg RedisConfig, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		cfg:            cfg,
		nowFn:          nowFn,
		memory:         NewMemoryStore(nowFn),
		newRedisClient: newRedisClient,
	}
}

// Acquire returns the store to use for the current request.
func (m *Manager) Acquire(ctx context.Context) Store {
	if m == nil {
		return NewMemoryStore(nil)
	}
	if !m.cfg.Enabled {
		return m.memory
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	if m.isBreakerActive(now) {
		return m.memory
	}
	store, errEnsure := m.ensureRedis(ctx)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return m.memory
	}
	return &failoverStore{manager: m, redis: store}
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil || m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("quota: redis unavailable, falling back to memory")
}

func (m *Manager) ensureRedis(ctx context.Context) (*RedisStore, error) {
	addr := strings.TrimSpace(m.cfg.Addr)
	if addr == "" {
		return nil, errors.New("quota redis: missing address")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisStore != nil {
		return m.redisStore, nil
	}

	db := m.cfg.DB
	if db < 0 {
		db = 0
	}
	client := m.newRedisClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(m.cfg.Password),
		DB:       db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisClient = client
	m.redisStore = NewRedisStore(client, strings.TrimSpace(m.cfg.Prefix))
	return m.redisStore, nil
}

// Close releases the Redis client if one was opened.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisClient == nil {
		return nil
	}
	errClose := m.redisClient.Close()
	m.redisClient = nil
	m.redisStore = nil
	return errClose
}

// failoverStore delegates to Redis and falls back to the memory store on
// error, tripping the manager's breaker so subsequent requests skip Redis
// until it recovers.
type failoverStore struct {
	manager *Manager
	redis   *RedisStore
}

func (f *failoverStore) Get(ctx context.Context, key string) (int, error) {
	count, errGet := f.redis.Get(ctx, key)
	if errGet == nil {
		return count, nil
	}
	f.manager.tripBreaker(errGet, f.manager.nowFn())
	return f.manager.memory.Get(ctx, key)
}

func (f *failoverStore) Increment(ctx context.Context, key string) (int, error) {
	count, errIncr := f.redis.Increment(ctx, key)
	if errIncr == nil {
		return count, nil
	}
	f.manager.tripBreaker(errIncr, f.manager.nowFn())
	return f.manager.memory.Increment(ctx, key)
}

func (f *failoverStore) Sweep(ctx context.Context) {
	f.redis.Sweep(ctx)
	// Memory counters accumulated during Redis outages still need eviction.
	f.manager.memory.Sweep(ctx)
}

func (f *failoverStore) Snapshot(ctx context.Context) (map[string]int, error) {
	snapshot, errSnap := f.redis.Snapshot(ctx)
	if errSnap == nil {
		return snapshot, nil
	}
	f.manager.tripBreaker(errSnap, f.manager.nowFn())
	return f.manager.memory.Snapshot(ctx)
}
