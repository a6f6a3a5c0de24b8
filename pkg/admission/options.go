package admission

import (
	"log/slog"
	"time"
)

// Option customizes an Engine (and, through it, a Guard).
type Option func(*Engine)

// WithPrefix sets the store key prefix (default "admission:").
func WithPrefix(prefix string) Option {
	return func(e *Engine) { e.keys.Prefix = prefix }
}

// WithTimeout bounds the store round trip per evaluation (default 5s). On
// expiry Evaluate returns OutcomeUnknown with the deadline error, never a
// guessed classification.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRecorder injects a metrics backend. A nil recorder falls back to the
// no-op implementation.
func WithRecorder(r MetricsRecorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock overrides the engine's time source. Evaluation timestamps are
// always engine-observed, never caller-supplied; tests use this to drive
// window and refill arithmetic deterministically.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}

// WithLogger sets the logger the Guard uses for extraction failures and
// indeterminate store outcomes (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
