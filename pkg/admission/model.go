package admission

import "time"

// Outcome classifies a single evaluated request.
type Outcome int

const (
	// OutcomeUnknown means the store round trip failed or timed out and no
	// classification could be made. It is deliberately the zero value so a
	// zero Decision never reads as admitted.
	OutcomeUnknown Outcome = iota
	// OutcomeAllow means the request claimed its dedup slot (when enabled)
	// and fit inside the caller's rate budget.
	OutcomeAllow
	// OutcomeDuplicate means content with the same fingerprint was already
	// admitted inside the dedup window. Duplicate traffic never consumes
	// rate-limit quota.
	OutcomeDuplicate
	// OutcomeRateLimited means the caller exceeded its budget for distinct
	// messages on this operation.
	OutcomeRateLimited
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Mode selects the rate-limit algorithm.
type Mode string

const (
	// ModeWindow counts admissions inside a trailing window of Period length,
	// capped at Limit.
	ModeWindow Mode = "window"
	// ModeBucket models a bucket of Limit tokens refilled continuously at
	// Limit tokens per Period; each admission consumes one token.
	ModeBucket Mode = "bucket"
)

// Limit is the rate-limit policy for one protected operation.
type Limit struct {
	Mode   Mode
	Limit  int64
	Period time.Duration
}

func (l Limit) validate() error {
	switch l.Mode {
	case ModeWindow, ModeBucket:
	default:
		return &ConfigurationError{Field: "mode", Reason: "must be \"window\" or \"bucket\""}
	}
	if l.Limit <= 0 {
		return &ConfigurationError{Field: "limit", Reason: "must be positive"}
	}
	if l.Period <= 0 {
		return &ConfigurationError{Field: "period", Reason: "must be positive"}
	}
	return nil
}

// Decision is the engine's classification of one request.
//
// Remaining is the caller's leftover budget after the decision is applied
// (whole tokens for bucket mode, free window slots for window mode).
// RetryAfter is zero unless the outcome is OutcomeRateLimited, in which case
// it approximates how long until one admission becomes available again.
type Decision struct {
	Outcome    Outcome
	Remaining  int64
	RetryAfter time.Duration
}

// Allowed reports whether the request was positively admitted. It is false
// for OutcomeUnknown; treating indeterminate store failures as admitted is a
// caller policy (see Guard and FailOpen), never a default.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// EvalRequest carries one request through the decision engine.
//
// Fingerprint is optional: nil disables deduplication for this call and the
// evaluation runs the rate-limit stage only. When a fingerprint is present,
// DedupTTL must be positive.
type EvalRequest struct {
	Operation   string
	CallerID    string
	Fingerprint *Fingerprint
	DedupTTL    time.Duration
	Limit       Limit
}

func (r EvalRequest) validate() error {
	if r.Operation == "" {
		return &ConfigurationError{Field: "operation", Reason: "is required"}
	}
	if err := validateOperationID(r.Operation); err != nil {
		return err
	}
	if r.CallerID == "" {
		return &ConfigurationError{Field: "caller_id", Reason: "is required"}
	}
	if r.Fingerprint != nil && r.DedupTTL <= 0 {
		return &ConfigurationError{Field: "dedup_ttl", Reason: "must be positive when a fingerprint is supplied"}
	}
	return r.Limit.validate()
}
