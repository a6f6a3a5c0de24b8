package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGuardConfig() Config {
	return Config{
		Operation:      "submitResult",
		EnableDedup:    true,
		DedupTTL:       5 * time.Second,
		FieldSelectors: []string{"deviceId", "testResult", "stepId"},
		RateLimit:      Limit{Mode: ModeWindow, Limit: 5, Period: time.Second},
	}
}

func TestGuard_AllowThenDuplicate(t *testing.T) {
	guard, err := NewGuard(NewMemoryStore(), testGuardConfig())
	require.NoError(t, err)

	payload := []byte(`{"deviceId":"D1","testResult":"PASS","stepId":7,"ts":1723450001123}`)

	dec, err := guard.Admit(context.Background(), "D1", payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllow, dec.Outcome)

	// Retry carries a fresh timestamp but identical semantic content.
	retry := []byte(`{"deviceId":"D1","testResult":"PASS","stepId":7,"ts":1723450003789}`)
	dec, err = guard.Admit(context.Background(), "D1", retry)
	require.NoError(t, err, "a duplicate is a classification, never an error")
	assert.Equal(t, OutcomeDuplicate, dec.Outcome)
}

func TestGuard_RateLimited(t *testing.T) {
	cfg := testGuardConfig()
	cfg.EnableDedup = false
	guard, err := NewGuard(NewMemoryStore(), cfg)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		dec, err := guard.Admit(context.Background(), "D1", []byte(`{}`))
		require.NoError(t, err)
		require.Equal(t, OutcomeAllow, dec.Outcome, "request %d", i+1)
	}

	dec, err := guard.Admit(context.Background(), "D1", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRateLimited, dec.Outcome)
	assert.Positive(t, dec.RetryAfter)
}

func TestGuard_ExtractionPolicySkipDedup(t *testing.T) {
	cfg := testGuardConfig()
	cfg.FieldSelectors = []string{"deviceId", "fieldThatNeverExists"}
	guard, err := NewGuard(NewMemoryStore(), cfg)
	require.NoError(t, err)

	// Default policy: request is non-deduplicable, so the identical payload
	// is admitted twice and only rate limiting applies.
	payload := []byte(`{"deviceId":"D1"}`)
	for i := 0; i < 2; i++ {
		dec, err := guard.Admit(context.Background(), "D1", payload)
		require.NoError(t, err)
		assert.Equal(t, OutcomeAllow, dec.Outcome)
	}
}

func TestGuard_ExtractionPolicyReject(t *testing.T) {
	cfg := testGuardConfig()
	cfg.FieldSelectors = []string{"deviceId", "fieldThatNeverExists"}
	cfg.OnExtractionError = ExtractReject
	guard, err := NewGuard(NewMemoryStore(), cfg)
	require.NoError(t, err)

	_, err = guard.Admit(context.Background(), "D1", []byte(`{"deviceId":"D1"}`))
	require.Error(t, err)
	assert.True(t, IsExtractionError(err))
}

func TestGuard_FailClosed(t *testing.T) {
	guard, err := NewGuard(&failingStore{err: errors.New("i/o timeout")}, testGuardConfig())
	require.NoError(t, err)

	dec, err := guard.Admit(context.Background(), "D1", []byte(`{"deviceId":"D1","testResult":"PASS","stepId":1}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Equal(t, OutcomeUnknown, dec.Outcome)
	assert.False(t, dec.Allowed())
}

func TestGuard_FailOpen(t *testing.T) {
	cfg := testGuardConfig()
	cfg.OnStoreFailure = FailOpen
	guard, err := NewGuard(&failingStore{err: errors.New("i/o timeout")}, cfg)
	require.NoError(t, err)

	dec, err := guard.Admit(context.Background(), "D1", []byte(`{"deviceId":"D1","testResult":"PASS","stepId":1}`))
	require.NoError(t, err, "fail-open swallows the store error and admits")
	assert.Equal(t, OutcomeUnknown, dec.Outcome, "the decision still reports what actually happened")
}

func TestNewGuard_InvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing operation", func(c *Config) { c.Operation = "" }},
		{"dedup without ttl", func(c *Config) { c.DedupTTL = 0 }},
		{"negative ttl", func(c *Config) { c.DedupTTL = -time.Second }},
		{"bad limiter mode", func(c *Config) { c.RateLimit.Mode = "leaky" }},
		{"bad extraction policy", func(c *Config) { c.OnExtractionError = "panic" }},
		{"bad failure policy", func(c *Config) { c.OnStoreFailure = "maybe" }},
		{"empty selector", func(c *Config) { c.FieldSelectors = []string{""} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testGuardConfig()
			tc.mutate(&cfg)
			_, err := NewGuard(NewMemoryStore(), cfg)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err), "got %v", err)
		})
	}
}

func TestGuard_DedupDisabledIgnoresSelectors(t *testing.T) {
	cfg := testGuardConfig()
	cfg.EnableDedup = false
	guard, err := NewGuard(NewMemoryStore(), cfg)
	require.NoError(t, err)

	// Same payload twice: no dedup configured, both admitted.
	for i := 0; i < 2; i++ {
		dec, err := guard.Admit(context.Background(), "D1", []byte(`{"deviceId":"D1","testResult":"PASS","stepId":7}`))
		require.NoError(t, err)
		assert.Equal(t, OutcomeAllow, dec.Outcome)
	}
}
