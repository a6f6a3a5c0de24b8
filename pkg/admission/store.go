package admission

import (
	"context"
	"time"
)

// Procedure is the fixed input of one atomic admission evaluation: the keys
// it may touch and the parameters of the two checks. The dedup claim always
// runs before the rate-limit math, and a duplicate returns without reading
// or writing the rate-limit key.
//
// Now is the timestamp all window and refill arithmetic uses. It is
// supplied by the engine (server-observed), never by the remote caller, so
// a client cannot manipulate refill math with a skewed clock.
type Procedure struct {
	// DedupKey is the conditional-claim key; empty disables deduplication
	// for this evaluation.
	DedupKey string
	DedupTTL time.Duration

	LimitKey string
	Limit    Limit

	Now time.Time

	// AdmissionID uniquely identifies this admission inside sliding-window
	// state.
	AdmissionID string
}

// ProcedureResult is the store's classification. Outcome is never
// OutcomeUnknown on a successful round trip; unknown arises only from a
// transport-level error, which stores report as a non-nil error instead.
type ProcedureResult struct {
	Outcome    Outcome
	Remaining  int64
	RetryAfter time.Duration
}

// Store executes the admission procedure atomically against shared state.
//
// Implementations must apply the whole procedure as one indivisible unit
// relative to every other concurrent evaluation touching the same keys: no
// other evaluation may observe or mutate the dedup record or the rate-limit
// state between the procedure's steps. RedisStore achieves this with a
// server-side script; MemoryStore with a process-wide mutex. A store whose
// backend lacks scripting can implement the same contract with a
// transaction or compare-and-swap loop.
type Store interface {
	Evaluate(ctx context.Context, proc Procedure) (ProcedureResult, error)
}
