package admission

// MetricsRecorder receives counters and timings from the engine:
// "admission.evaluate" counts evaluations tagged by operation and outcome,
// "admission.latency" observes the store round-trip duration in seconds.
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoopMetricsRecorder is the default recorder. It does nothing, so the hot
// path never checks for nil.
type NoopMetricsRecorder struct{}

func (n *NoopMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (n *NoopMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}
