package admission

import (
	"context"
	"errors"
	"fmt"
)

// Guard binds one protected operation's configuration to the decision
// engine: it fingerprints the payload, evaluates, and applies the
// operation's extraction and store-failure policies. The transport layer
// (HTTP handler, gRPC interceptor, queue consumer) calls Admit before the
// business call and maps the decision:
//
//	OutcomeAllow        run the business call
//	OutcomeDuplicate    answer as if the original request succeeded;
//	                    raising an error here only amplifies retry storms
//	OutcomeRateLimited  reject, surfacing Decision.RetryAfter
//	OutcomeUnknown      only seen with a nil error under FailOpen: proceed
//
// A non-nil error from Admit always means "do not run the business call".
type Guard struct {
	cfg       Config
	engine    *Engine
	extractor *Extractor
}

// NewGuard validates the configuration and builds the guard. Every
// configuration problem surfaces here; Admit performs no setup checks.
func NewGuard(store Store, cfg Config, opts ...Option) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	engine, err := NewEngine(store, opts...)
	if err != nil {
		return nil, err
	}

	g := &Guard{cfg: cfg, engine: engine}
	if cfg.EnableDedup {
		g.extractor, err = NewExtractor(cfg.FieldSelectors...)
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Operation returns the protected operation this guard covers.
func (g *Guard) Operation() string {
	return g.cfg.Operation
}

// Admit classifies one inbound payload for the given caller.
func (g *Guard) Admit(ctx context.Context, callerID string, payload []byte) (Decision, error) {
	req := EvalRequest{
		Operation: g.cfg.Operation,
		CallerID:  callerID,
		Limit:     g.cfg.RateLimit,
	}

	if g.extractor != nil {
		fp, err := g.extractor.Fingerprint(payload)
		switch {
		case err == nil:
			req.Fingerprint = &fp
			req.DedupTTL = g.cfg.DedupTTL
		case g.cfg.OnExtractionError == ExtractReject:
			return Decision{}, fmt.Errorf("admit %s: %w", g.cfg.Operation, err)
		default:
			// Non-deduplicable by policy: continue to rate limiting only.
			g.engine.logger.Warn("fingerprint extraction failed, skipping dedup",
				"operation", g.cfg.Operation,
				"caller_id", callerID,
				"error", err)
		}
	}

	dec, err := g.engine.Evaluate(ctx, req)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) && g.cfg.OnStoreFailure == FailOpen {
			g.engine.logger.Warn("store unavailable, admitting per fail-open policy",
				"operation", g.cfg.Operation,
				"caller_id", callerID,
				"error", err)
			return Decision{Outcome: OutcomeUnknown}, nil
		}
		return Decision{}, err
	}
	return dec, nil
}
