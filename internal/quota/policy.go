package quota

import (
	"context"
	"sync"
	"time"
)

// Backend supplies the counter store to use for a request.
type Backend interface {
	Acquire(ctx context.Context) Store
}

// Policy decides whether a request is admitted against the configured tiers.
// Checks run in strict priority order: global daily, then per-identity
// minute, then per-identity daily. A denial touches no counter; an admission
// increments every configured tier before returning, so the request cost is
// counted before any upstream call is attempted.
type Policy struct {
	// mu serializes the read-decide-increment sequence so concurrent
	// requests never interleave mid-decision.
	mu      sync.Mutex
	backend Backend
	limits  Limits
	nowFn   func() time.Time
}

// NewPolicy constructs a Policy with default dependencies when nil.
func NewPolicy(backend Backend, limits Limits, nowFn func() time.Time) *Policy {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Policy{
		backend: backend,
		limits:  limits,
		nowFn:   nowFn,
	}
}

// Limits returns the configured tier caps.
func (p *Policy) Limits() Limits {
	if p == nil {
		return Limits{}
	}
	return p.limits
}

// Evaluate runs the admission decision for identity at the current time.
func (p *Policy) Evaluate(ctx context.Context, identity string) (Decision, error) {
	if p == nil || p.backend == nil {
		return Decision{Allowed: true}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFn()
	store := p.backend.Acquire(ctx)
	decision := Decision{
		Minute: TierState{Limit: p.limits.PerMinute},
		Daily:  TierState{Limit: p.limits.PerDay},
		Global: TierState{Limit: p.limits.GlobalDaily},
	}

	globalKey := GlobalKey(now)
	if decision.Global.Enabled() {
		count, errGet := store.Get(ctx, globalKey)
		if errGet != nil {
			return Decision{}, errGet
		}
		decision.Global.Count = count
		if count >= p.limits.GlobalDaily {
			decision.Tier = TierGlobal
			return decision, nil
		}
	}

	minuteKey := MinuteKey(identity, now)
	if decision.Minute.Enabled() {
		count, errGet := store.Get(ctx, minuteKey)
		if errGet != nil {
			return Decision{}, errGet
		}
		decision.Minute.Count = count
		if count >= p.limits.PerMinute {
			decision.Tier = TierMinute
			return decision, nil
		}
	}

	dailyKey := DailyKey(identity, now)
	if decision.Daily.Enabled() {
		count, errGet := store.Get(ctx, dailyKey)
		if errGet != nil {
			return Decision{}, errGet
		}
		decision.Daily.Count = count
		if count >= p.limits.PerDay {
			decision.Tier = TierDaily
			return decision, nil
		}
	}

	if decision.Minute.Enabled() {
		count, errIncr := store.Increment(ctx, minuteKey)
		if errIncr != nil {
			return Decision{}, errIncr
		}
		decision.Minute.Count = count
	}
	if decision.Daily.Enabled() {
		count, errIncr := store.Increment(ctx, dailyKey)
		if errIncr != nil {
			return Decision{}, errIncr
		}
		decision.Daily.Count = count
	}
	if decision.Global.Enabled() {
		count, errIncr := store.Increment(ctx, globalKey)
		if errIncr != nil {
			return Decision{}, errIncr
		}
		decision.Global.Count = count
	}
	store.Sweep(ctx)

	decision.Allowed = true
	return decision, nil
}
