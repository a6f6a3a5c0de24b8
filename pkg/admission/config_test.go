package admission

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "admission.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
operations:
  - operation: submitResult
    enable_dedup: true
    dedup_ttl_ms: 5000
    field_selectors: [deviceId, testResult, stepId]
    rate_limit:
      mode: window
      limit: 5
      period_ms: 1000
  - operation: submitLog
    rate_limit:
      mode: bucket
      limit: 100
      period_ms: 60000
    on_store_failure: fail_open
`)

	configs, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, configs, 2)

	first := configs[0]
	assert.Equal(t, "submitResult", first.Operation)
	assert.True(t, first.EnableDedup)
	assert.Equal(t, 5*time.Second, first.DedupTTL)
	assert.Equal(t, []string{"deviceId", "testResult", "stepId"}, first.FieldSelectors)
	assert.Equal(t, Limit{Mode: ModeWindow, Limit: 5, Period: time.Second}, first.RateLimit)
	assert.Equal(t, ExtractSkipDedup, first.OnExtractionError, "defaulted")
	assert.Equal(t, FailClosed, first.OnStoreFailure, "defaulted")

	second := configs[1]
	assert.False(t, second.EnableDedup)
	assert.Equal(t, ModeBucket, second.RateLimit.Mode)
	assert.Equal(t, FailOpen, second.OnStoreFailure)
}

func TestLoadConfig_InvalidEntries(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"no operations", "operations: []\n"},
		{"dedup without ttl", `
operations:
  - operation: submitResult
    enable_dedup: true
    rate_limit: {mode: window, limit: 5, period_ms: 1000}
`},
		{"unknown mode", `
operations:
  - operation: submitResult
    rate_limit: {mode: leaky, limit: 5, period_ms: 1000}
`},
		{"zero limit", `
operations:
  - operation: submitResult
    rate_limit: {mode: window, limit: 0, period_ms: 1000}
`},
		{"operation with colon", `
operations:
  - operation: "submit:result"
    rate_limit: {mode: window, limit: 5, period_ms: 1000}
`},
		{"bad policy", `
operations:
  - operation: submitResult
    rate_limit: {mode: window, limit: 5, period_ms: 1000}
    on_store_failure: shrug
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.contents))
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err), "got %v", err)
		})
	}
}

func TestLoadConfig_FileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "operations: {not: a list}\n"))
	require.Error(t, err)
}
