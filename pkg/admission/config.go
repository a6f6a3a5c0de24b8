package admission

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ExtractionPolicy decides what a Guard does when fingerprint extraction
// fails on a request.
type ExtractionPolicy string

const (
	// ExtractSkipDedup treats the request as non-deduplicable and passes it
	// straight to rate limiting. This is the default.
	ExtractSkipDedup ExtractionPolicy = "skip_dedup"
	// ExtractReject refuses the request outright.
	ExtractReject ExtractionPolicy = "reject"
)

// FailurePolicy decides what a Guard does when the store round trip fails
// or times out and the outcome is unknown.
type FailurePolicy string

const (
	// FailClosed rejects on indeterminate store failures. This is the
	// default: data-integrity-sensitive ingestion prefers a refused write
	// over a possibly-duplicate one.
	FailClosed FailurePolicy = "fail_closed"
	// FailOpen admits on indeterminate store failures.
	FailOpen FailurePolicy = "fail_open"
)

// Config declares how one protected operation is guarded. All fields are
// validated at setup time; nothing here is checked per request.
type Config struct {
	Operation      string
	EnableDedup    bool
	DedupTTL       time.Duration
	FieldSelectors []string
	RateLimit      Limit

	OnExtractionError ExtractionPolicy
	OnStoreFailure    FailurePolicy
}

// Validate reports the first invalid field as a *ConfigurationError.
func (c Config) Validate() error {
	if c.Operation == "" {
		return &ConfigurationError{Field: "operation", Reason: "is required"}
	}
	if err := validateOperationID(c.Operation); err != nil {
		return err
	}
	if c.EnableDedup && c.DedupTTL <= 0 {
		return &ConfigurationError{Field: "dedup_ttl", Reason: "must be positive when dedup is enabled"}
	}
	if err := c.RateLimit.validate(); err != nil {
		return err
	}
	switch c.OnExtractionError {
	case "", ExtractSkipDedup, ExtractReject:
	default:
		return &ConfigurationError{Field: "on_extraction_error", Reason: "must be \"skip_dedup\" or \"reject\""}
	}
	switch c.OnStoreFailure {
	case "", FailClosed, FailOpen:
	default:
		return &ConfigurationError{Field: "on_store_failure", Reason: "must be \"fail_closed\" or \"fail_open\""}
	}
	return nil
}

func (c Config) normalized() Config {
	if c.OnExtractionError == "" {
		c.OnExtractionError = ExtractSkipDedup
	}
	if c.OnStoreFailure == "" {
		c.OnStoreFailure = FailClosed
	}
	return c
}

// configFile is the YAML shape consumed by LoadConfig. Durations are plain
// millisecond integers.
type configFile struct {
	Operations []struct {
		Operation         string   `yaml:"operation"`
		EnableDedup       bool     `yaml:"enable_dedup"`
		DedupTTLMs        int64    `yaml:"dedup_ttl_ms"`
		FieldSelectors    []string `yaml:"field_selectors"`
		RateLimit         struct {
			Mode     string `yaml:"mode"`
			Limit    int64  `yaml:"limit"`
			PeriodMs int64  `yaml:"period_ms"`
		} `yaml:"rate_limit"`
		OnExtractionError string `yaml:"on_extraction_error"`
		OnStoreFailure    string `yaml:"on_store_failure"`
	} `yaml:"operations"`
}

// LoadConfig reads and validates a YAML file declaring the protected
// operations. Validation failures name the offending operation.
func LoadConfig(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(file.Operations) == 0 {
		return nil, &ConfigurationError{Field: "operations", Reason: "must declare at least one operation"}
	}

	configs := make([]Config, 0, len(file.Operations))
	for _, op := range file.Operations {
		cfg := Config{
			Operation:         op.Operation,
			EnableDedup:       op.EnableDedup,
			DedupTTL:          time.Duration(op.DedupTTLMs) * time.Millisecond,
			FieldSelectors:    op.FieldSelectors,
			RateLimit:         Limit{Mode: Mode(op.RateLimit.Mode), Limit: op.RateLimit.Limit, Period: time.Duration(op.RateLimit.PeriodMs) * time.Millisecond},
			OnExtractionError: ExtractionPolicy(op.OnExtractionError),
			OnStoreFailure:    FailurePolicy(op.OnStoreFailure),
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("operation %q: %w", op.Operation, err)
		}
		configs = append(configs, cfg.normalized())
	}
	return configs, nil
}
