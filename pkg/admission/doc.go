// Package admission provides admission control for high-volume, retry-prone
// ingestion: idempotent deduplication and per-caller rate limiting evaluated
// atomically against a shared store.
//
// The primary entry points are the Engine, for callers that manage their own
// fingerprints and limits:
//
//	dec, err := engine.Evaluate(ctx, req)
//
// and the Guard, which bundles an operation's configuration (selectors,
// TTLs, limiter parameters, failure policies) with the engine:
//
//	dec, err := guard.Admit(ctx, callerID, payload)
//
// # Overview
//
// Device fleets retry aggressively: a test rig that never hears an ack will
// resend the same result until something answers. Two guarantees have to
// hold on every inbound message, and they have to hold together:
//
//   - Deduplication: a message whose semantically relevant content was
//     already admitted inside a short trailing window is classified
//     OutcomeDuplicate and suppressed.
//   - Rate limiting: the rate of distinct messages per caller is bounded by
//     a sliding-window or token-bucket policy.
//
// The order matters. The dedup check runs first, and a duplicate returns
// before the rate-limit state is read or written, so a retry storm from one
// device cannot burn through that device's quota for legitimate traffic.
// Both checks execute inside one store round trip as a single indivisible
// unit: no concurrent evaluation can observe the state between them.
//
// # Core Types
//
// Fingerprint is a deterministic digest over a declared subset of payload
// fields. Selectors are gjson paths; volatile fields (timestamps, nonces)
// are simply not selected. That exclusion is what makes deduplication
// possible at all: a fingerprint that covered a millisecond timestamp
// would never match its own retry.
//
// Limit is the rate policy: ModeWindow admits at most Limit messages in any
// trailing Period; ModeBucket holds Limit tokens refilled continuously at
// Limit tokens per Period.
//
// Decision carries the Outcome (allow, duplicate, rate_limited, unknown)
// plus Remaining budget and a RetryAfter hint for denied requests.
//
// # Backends
//
// Store is the capability the engine needs: atomically execute the
// admission procedure against a fixed set of keys. Two implementations
// ship with the package:
//
//   - MemoryStore: an in-process store guarded by a mutex. Useful for unit
//     tests and single-instance deployments; state is not shared across
//     replicas.
//
//   - RedisStore: a distributed store that runs the whole procedure as a
//     server-side Lua script, making it safe across many application
//     instances sharing one Redis. The script is loaded once and invoked
//     via EVALSHA, with an automatic fallback re-send of the script body
//     if the script cache was flushed.
//
// Both backends implement identical semantics, including the claim-first
// ordering and the refill arithmetic, so tests against MemoryStore predict
// RedisStore behavior.
//
// # Concurrency
//
// The engine performs no local locking; correctness is delegated entirely
// to the store's atomicity. Evaluate issues exactly one blocking store call
// per request, and callers may invoke it concurrently from any number of
// goroutines, processes, or machines. For N concurrent requests bearing the
// same fingerprint inside the dedup window, exactly one reaches the
// rate-limit stage and the rest observe OutcomeDuplicate, regardless of
// arrival order.
//
// All window and refill arithmetic uses the engine-observed timestamp
// handed to the atomic step, never a caller-supplied one, so a skewed or
// hostile client clock cannot mint tokens.
//
// # Context and Error Policy
//
// Evaluate accepts a context and additionally bounds the round trip with
// the WithTimeout option. When the store call fails or times out the engine
// returns OutcomeUnknown together with an error wrapping
// ErrStoreUnavailable; it is never silently mapped to an allow or a
// duplicate. Whether unknown
// means admit or reject is the caller's choice; Guard applies it as the
// configured FailurePolicy, defaulting to fail-closed.
//
// Configuration problems (non-positive TTLs, bad limiter parameters,
// malformed selectors) are ConfigurationErrors raised at setup, never at
// request time.
//
// # Storage Details
//
// Keys are namespaced per operation and per caller:
//
//	{prefix}dedup:{operation}:{fingerprint_hex}
//	{prefix}ratelimit:{operation}:{caller_id}
//
// The dedup record is a sentinel value whose creation is the atomic claim
// event; it self-destructs via TTL and nothing ever deletes it explicitly.
// Rate-limit state is a sorted set of admission timestamps (window mode) or
// a hash of tokens/last_refill (bucket mode), expired after a small
// multiple of the period so idle callers are garbage collected naturally.
//
// # Configuration
//
// Engines and Guards use the functional options pattern:
//
//	guard, err := admission.NewGuard(store, cfg,
//		admission.WithPrefix("ingest:"),
//		admission.WithTimeout(2*time.Second),
//		admission.WithRecorder(myMetrics),
//	)
//
// Operation configs can also be declared in YAML and loaded with
// LoadConfig; see Config for the fields.
package admission
