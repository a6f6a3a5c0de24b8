package admission

import (
	"context"
	"math"
	"sync"
	"time"
)

type windowState struct {
	admissions []time.Time
	expiresAt  time.Time
}

type bucketState struct {
	tokens     float64
	lastRefill time.Time
	expiresAt  time.Time
}

// Expired entries are swept when the store has not been swept for
// sweepInterval, or earlier if the claim map grows past sweepHighWater
// (a one-shot fingerprint is never touched again, so without the sweep a
// feed of unique payloads would grow the map forever).
const (
	sweepInterval  = time.Minute
	sweepHighWater = 4096
)

// MemoryStore is an in-process Store for unit tests and single-instance
// deployments. It applies the same procedure as the Redis script, in the
// same order and with the same arithmetic, under one mutex; its state is
// local to the process and is not shared across replicas.
//
// Expired entries are dropped by a periodic sweep amortized over Evaluate
// calls, the in-process analogue of Redis key expiry.
type MemoryStore struct {
	mu        sync.Mutex
	claims    map[string]time.Time
	windows   map[string]*windowState
	buckets   map[string]*bucketState
	lastSweep time.Time
}

// NewMemoryStore constructs a MemoryStore with empty state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims:  make(map[string]time.Time),
		windows: make(map[string]*windowState),
		buckets: make(map[string]*bucketState),
	}
}

// Evaluate applies the admission procedure under the store mutex. The
// context is consulted before evaluating so cancelled callers see their
// context error rather than a fabricated classification.
func (m *MemoryStore) Evaluate(ctx context.Context, proc Procedure) (ProcedureResult, error) {
	if err := ctx.Err(); err != nil {
		return ProcedureResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := proc.Now
	if now.Sub(m.lastSweep) >= sweepInterval || len(m.claims) > sweepHighWater {
		m.sweepLocked(now)
	}

	if proc.DedupKey != "" && proc.DedupTTL > 0 {
		if exp, ok := m.claims[proc.DedupKey]; ok && exp.After(now) {
			return ProcedureResult{Outcome: OutcomeDuplicate}, nil
		}
		m.claims[proc.DedupKey] = now.Add(proc.DedupTTL)
	}

	if proc.Limit.Mode == ModeWindow {
		return m.evaluateWindow(proc, now), nil
	}
	return m.evaluateBucket(proc, now), nil
}

// sweepLocked drops every expired claim and limiter state. Must be called
// with mu held.
func (m *MemoryStore) sweepLocked(now time.Time) {
	for key, exp := range m.claims {
		if !exp.After(now) {
			delete(m.claims, key)
		}
	}
	for key, st := range m.windows {
		if !st.expiresAt.After(now) {
			delete(m.windows, key)
		}
	}
	for key, st := range m.buckets {
		if !st.expiresAt.After(now) {
			delete(m.buckets, key)
		}
	}
	m.lastSweep = now
}

func (m *MemoryStore) evaluateWindow(proc Procedure, now time.Time) ProcedureResult {
	st, ok := m.windows[proc.LimitKey]
	if !ok || !st.expiresAt.After(now) {
		st = &windowState{}
		m.windows[proc.LimitKey] = st
	}

	cutoff := now.Add(-proc.Limit.Period)
	kept := st.admissions[:0]
	for _, at := range st.admissions {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	st.admissions = kept

	count := int64(len(st.admissions))
	if count >= proc.Limit.Limit {
		retry := time.Duration(0)
		if len(st.admissions) > 0 {
			retry = st.admissions[0].Add(proc.Limit.Period).Sub(now)
			if retry < 0 {
				retry = 0
			}
		}
		return ProcedureResult{Outcome: OutcomeRateLimited, RetryAfter: retry}
	}

	st.admissions = append(st.admissions, now)
	st.expiresAt = now.Add(2 * proc.Limit.Period)
	return ProcedureResult{Outcome: OutcomeAllow, Remaining: proc.Limit.Limit - count - 1}
}

func (m *MemoryStore) evaluateBucket(proc Procedure, now time.Time) ProcedureResult {
	st, ok := m.buckets[proc.LimitKey]
	if !ok || !st.expiresAt.After(now) {
		st = &bucketState{tokens: float64(proc.Limit.Limit), lastRefill: now}
		m.buckets[proc.LimitKey] = st
	}

	elapsed := now.Sub(st.lastRefill)
	if elapsed < 0 {
		elapsed = 0
	}
	refill := float64(elapsed) * float64(proc.Limit.Limit) / float64(proc.Limit.Period)
	st.tokens = math.Min(float64(proc.Limit.Limit), st.tokens+refill)
	st.lastRefill = now
	st.expiresAt = now.Add(3 * proc.Limit.Period)

	if st.tokens >= 1 {
		st.tokens--
		return ProcedureResult{Outcome: OutcomeAllow, Remaining: int64(st.tokens)}
	}

	perToken := float64(proc.Limit.Period) / float64(proc.Limit.Limit)
	retry := time.Duration(math.Ceil((1 - st.tokens) * perToken))
	return ProcedureResult{Outcome: OutcomeRateLimited, Remaining: int64(st.tokens), RetryAfter: retry}
}
