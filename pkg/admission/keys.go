package admission

import "strings"

const defaultPrefix = "admission:"

// KeyBuilder derives the store keys for one evaluation. Keys are namespaced
// by operation so identical content sent to two different operations can
// never cross-suppress, and a caller's budget on one operation is
// independent of its budget on another.
//
// Operation ids may not contain ":" (enforced at setup); the fingerprint
// hex and the caller id always terminate their key, so caller ids are
// free-form.
type KeyBuilder struct {
	Prefix string
}

// Dedup returns the key for the dedup record of a fingerprint.
func (b KeyBuilder) Dedup(operation string, fp Fingerprint) string {
	return b.prefix() + "dedup:" + operation + ":" + fp.Hex()
}

// RateLimit returns the key for a caller's rate-limit state.
func (b KeyBuilder) RateLimit(operation, callerID string) string {
	return b.prefix() + "ratelimit:" + operation + ":" + callerID
}

func (b KeyBuilder) prefix() string {
	if b.Prefix == "" {
		return defaultPrefix
	}
	return b.Prefix
}

func validateOperationID(operation string) error {
	if strings.Contains(operation, ":") {
		return &ConfigurationError{Field: "operation", Reason: "must not contain \":\""}
	}
	return nil
}
