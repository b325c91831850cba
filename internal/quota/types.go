package quota

import "context"

// Tier identifies which quota rule produced a denial.
type Tier string

const (
	// TierMinute is the per-identity per-minute limit.
	TierMinute Tier = "minute"
	// TierDaily is the per-identity calendar-day limit.
	TierDaily Tier = "daily"
	// TierGlobal is the shared calendar-day limit across all identities.
	TierGlobal Tier = "global"
)

// TierState carries the configured limit and the current count for one tier.
type TierState struct {
	Limit int
	Count int
}

// Enabled reports whether the tier is configured.
func (s TierState) Enabled() bool { return s.Limit > 0 }

// Remaining returns the remaining allowance, never negative.
func (s TierState) Remaining() int {
	remaining := s.Limit - s.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Decision describes the outcome of a quota evaluation. It is produced fresh
// per request and never cached.
type Decision struct {
	Allowed bool
	Tier    Tier // set when Allowed is false
	Minute  TierState
	Daily   TierState
	Global  TierState
}

// Store is a counter store keyed by window keys. Absence of a key is
// equivalent to a zero count.
type Store interface {
	// Get returns the current count for key, 0 if absent.
	Get(ctx context.Context, key string) (int, error)
	// Increment adds one to the count for key and returns the new value.
	Increment(ctx context.Context, key string) (int, error)
	// Sweep evicts entries whose window is older than the immediately
	// previous one. Implementations with native expiry may no-op.
	Sweep(ctx context.Context)
	// Snapshot returns a copy of all live counters.
	Snapshot(ctx context.Context) (map[string]int, error)
}

// Limits holds the configured request caps per tier. A zero value disables
// the tier.
type Limits struct {
	PerMinute   int
	PerDay      int
	GlobalDaily int
}
