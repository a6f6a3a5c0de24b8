package admission

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks store round trips that failed or timed out. The
// engine wraps the underlying error, so both
// errors.Is(err, ErrStoreUnavailable) and errors.Is(err, context.DeadlineExceeded)
// hold when a deadline fired mid-trip.
var ErrStoreUnavailable = errors.New("admission store unavailable")

// ExtractionError reports a field selector that did not resolve against a
// payload, or a payload the extractor could not parse.
type ExtractionError struct {
	Selector string
	Reason   string
}

func (e *ExtractionError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("fingerprint extraction: %s", e.Reason)
	}
	return fmt.Sprintf("fingerprint extraction: selector %q %s", e.Selector, e.Reason)
}

// IsExtractionError reports whether err is (or wraps) an ExtractionError.
func IsExtractionError(err error) bool {
	var e *ExtractionError
	return errors.As(err, &e)
}

// ConfigurationError reports an invalid setup value. It is always produced
// at construction or validation time, never from the request hot path.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("admission config: %s %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}
