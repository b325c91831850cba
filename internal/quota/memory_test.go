package quota

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreGetAbsentIsZero(t *testing.T) {
	store := NewMemoryStore(nil)
	count, errGet := store.Get(context.Background(), "1.2.3.4:m:1")
	if errGet != nil {
		t.Fatalf("expected no error, got %v", errGet)
	}
	if count != 0 {
		t.Fatalf("expected 0 for absent key, got %d", count)
	}
}

func TestMemoryStoreIncrement(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	for want := 1; want <= 3; want++ {
		count, errIncr := store.Increment(ctx, "k")
		if errIncr != nil {
			t.Fatalf("expected no error, got %v", errIncr)
		}
		if count != want {
			t.Fatalf("expected count %d, got %d", want, count)
		}
	}
}

func TestMemoryStoreSweepRetainsCurrentAndPreviousWindow(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	live := []string{
		MinuteKey("1.2.3.4", now),
		MinuteKey("1.2.3.4", now.Add(-time.Minute)),
		DailyKey("1.2.3.4", now),
		DailyKey("1.2.3.4", now.AddDate(0, 0, -1)),
		GlobalKey(now),
	}
	dead := []string{
		MinuteKey("1.2.3.4", now.Add(-2*time.Minute)),
		DailyKey("1.2.3.4", now.AddDate(0, 0, -2)),
		GlobalKey(now.AddDate(0, 0, -2)),
	}
	for _, key := range append(append([]string{}, live...), dead...) {
		if _, errIncr := store.Increment(ctx, key); errIncr != nil {
			t.Fatalf("increment %s: %v", key, errIncr)
		}
	}

	store.Sweep(ctx)

	snapshot, errSnap := store.Snapshot(ctx)
	if errSnap != nil {
		t.Fatalf("snapshot: %v", errSnap)
	}
	for _, key := range live {
		if _, ok := snapshot[key]; !ok {
			t.Fatalf("expected key %q to survive sweep", key)
		}
	}
	for _, key := range dead {
		if _, ok := snapshot[key]; ok {
			t.Fatalf("expected key %q to be evicted", key)
		}
	}
}

func TestMemoryStoreSnapshotIsACopy(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	if _, errIncr := store.Increment(ctx, "k"); errIncr != nil {
		t.Fatalf("increment: %v", errIncr)
	}
	snapshot, _ := store.Snapshot(ctx)
	snapshot["k"] = 99
	count, _ := store.Get(ctx, "k")
	if count != 1 {
		t.Fatalf("expected snapshot mutation to not affect store, got %d", count)
	}
}
