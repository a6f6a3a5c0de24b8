package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"admission-gate/pkg/admission"
)

// defaultConfig guards a single operation when no config file is supplied,
// matching the semiconductor test-result feed this server demos.
var defaultConfig = []admission.Config{{
	Operation:      "submitResult",
	EnableDedup:    true,
	DedupTTL:       5 * time.Second,
	FieldSelectors: []string{"deviceId", "testResult", "stepId"},
	RateLimit:      admission.Limit{Mode: admission.ModeWindow, Limit: 5, Period: time.Second},
}}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	configs := defaultConfig
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		var err error
		configs, err = admission.LoadConfig(path)
		if err != nil {
			logger.Error("load config", "path", path, "error", err)
			os.Exit(1)
		}
	}

	store, err := buildStore(logger)
	if err != nil {
		logger.Error("connect store", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	for _, cfg := range configs {
		guard, err := admission.NewGuard(store, cfg,
			admission.WithPrefix("ingest:"),
			admission.WithTimeout(2*time.Second),
			admission.WithLogger(logger),
		)
		if err != nil {
			logger.Error("build guard", "operation", cfg.Operation, "error", err)
			os.Exit(1)
		}
		mux.HandleFunc("POST /ingest/"+cfg.Operation, ingestHandler(guard, logger))
		logger.Info("guarding operation",
			"operation", cfg.Operation,
			"dedup", cfg.EnableDedup,
			"mode", string(cfg.RateLimit.Mode),
			"limit", cfg.RateLimit.Limit)
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	logger.Info("listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}

func buildStore(logger *slog.Logger) (admission.Store, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Warn("REDIS_ADDR not set, using in-process store (state is not shared across replicas)")
		return admission.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return admission.NewRedisStore(client)
}

func ingestHandler(guard *admission.Guard, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()

		callerID := r.Header.Get("X-Caller-ID")
		if callerID == "" {
			http.Error(w, "X-Caller-ID header is required", http.StatusBadRequest)
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		dec, err := guard.Admit(r.Context(), callerID, payload)
		logger.Info("admission",
			"request_id", requestID,
			"operation", guard.Operation(),
			"caller_id", callerID,
			"outcome", dec.Outcome.String(),
			"error", err)
		if err != nil {
			http.Error(w, "admission check failed", http.StatusServiceUnavailable)
			return
		}

		switch dec.Outcome {
		case admission.OutcomeDuplicate:
			// Answer as if the original request succeeded so the device
			// stops resending; a hard error here would amplify the retries.
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "accepted (already received)")
		case admission.OutcomeRateLimited:
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", dec.RetryAfter.Seconds()+0.5))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		default:
			// OutcomeAllow, or OutcomeUnknown admitted by fail-open policy.
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprintln(w, "accepted")
		}
	}
}
