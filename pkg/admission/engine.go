package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Engine is the atomic decision engine. It builds the store keys for a
// request and issues exactly one store round trip per evaluation; all
// shared state lives behind the Store, so Evaluate is safe to call from any
// number of goroutines, processes, or machines without caller-side
// coordination.
type Engine struct {
	store    Store
	keys     KeyBuilder
	timeout  time.Duration
	clock    func() time.Time
	recorder MetricsRecorder
	logger   *slog.Logger
}

// NewEngine constructs an Engine over the given store.
func NewEngine(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, &ConfigurationError{Field: "store", Reason: "is required"}
	}
	e := &Engine{
		store:    store,
		timeout:  5 * time.Second,
		clock:    time.Now,
		recorder: &NoopMetricsRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate classifies one request. Ordering is load-bearing: when a
// fingerprint is present the dedup claim runs first inside the store
// procedure, and a duplicate returns before the rate-limit state is read,
// so retry storms never consume a legitimate caller's quota.
//
// A store failure or timeout yields a zero Decision (OutcomeUnknown)
// together with an error wrapping ErrStoreUnavailable. The engine never
// guesses: mapping unknown to admit or reject is the caller's
// fail-open/fail-closed policy.
func (e *Engine) Evaluate(ctx context.Context, req EvalRequest) (Decision, error) {
	if err := req.validate(); err != nil {
		return Decision{}, err
	}

	proc := Procedure{
		LimitKey:    e.keys.RateLimit(req.Operation, req.CallerID),
		Limit:       req.Limit,
		Now:         e.clock(),
		AdmissionID: uuid.NewString(),
	}
	if req.Fingerprint != nil {
		proc.DedupKey = e.keys.Dedup(req.Operation, *req.Fingerprint)
		proc.DedupTTL = req.DedupTTL
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res, err := e.store.Evaluate(ctx, proc)
	e.recorder.Observe("admission.latency", time.Since(start).Seconds(), map[string]string{
		"operation": req.Operation,
	})
	if err != nil {
		e.recorder.Add("admission.evaluate", 1, map[string]string{
			"operation": req.Operation,
			"outcome":   OutcomeUnknown.String(),
		})
		return Decision{}, fmt.Errorf("evaluate %s: %w: %w", req.Operation, ErrStoreUnavailable, err)
	}

	e.recorder.Add("admission.evaluate", 1, map[string]string{
		"operation": req.Operation,
		"outcome":   res.Outcome.String(),
	})
	return Decision{
		Outcome:    res.Outcome,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}
