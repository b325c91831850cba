package quota

import (
	"context"
	"testing"
	"time"
)

func TestManagerDisabledRedisUsesMemory(t *testing.T) {
	manager := NewManager(RedisConfig{}, nil, nil)
	store := manager.Acquire(context.Background())
	if store != manager.memory {
		t.Fatalf("expected memory store when redis is disabled")
	}
}

func TestManagerMissingAddrTripsBreaker(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	nowFn := func() time.Time { return now }
	manager := NewManager(RedisConfig{Enabled: true}, nowFn, nil)

	store := manager.Acquire(context.Background())
	if store != manager.memory {
		t.Fatalf("expected fallback to memory on missing redis address")
	}
	if !manager.isBreakerActive(now.Add(time.Second)) {
		t.Fatalf("expected breaker tripped")
	}
	if manager.isBreakerActive(now.Add(redisBreakerDuration + time.Second)) {
		t.Fatalf("expected breaker cleared after its window")
	}
}

func TestManagerUnreachableRedisFallsBack(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	nowFn := func() time.Time { return now }
	manager := NewManager(RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}, nowFn, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store := manager.Acquire(ctx)
	if store != manager.memory {
		t.Fatalf("expected fallback to memory when redis is unreachable")
	}

	// While the breaker is active the manager must not re-probe.
	if got := manager.Acquire(ctx); got != manager.memory {
		t.Fatalf("expected memory store while breaker active")
	}
}

func TestManagerCloseWithoutRedisIsNil(t *testing.T) {
	manager := NewManager(RedisConfig{}, nil, nil)
	if errClose := manager.Close(); errClose != nil {
		t.Fatalf("expected nil close error, got %v", errClose)
	}
}
