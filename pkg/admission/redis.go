package admission

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed evaluate.lua
var evaluateScript string

// RedisStore runs the admission procedure as a server-side Lua script, so
// the dedup claim and the rate-limit update apply as one indivisible unit
// across every process sharing the Redis instance.
type RedisStore struct {
	client    *redis.Client
	scriptSHA string
}

// NewRedisStore verifies connectivity and loads the evaluation script into
// the Redis script cache.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	sha, err := client.ScriptLoad(ctx, evaluateScript).Result()
	if err != nil {
		return nil, fmt.Errorf("load evaluation script: %w", err)
	}

	return &RedisStore{
		client:    client,
		scriptSHA: sha,
	}, nil
}

// Evaluate issues the single scripted round trip. On NOSCRIPT (script cache
// flushed, or a failover to a replica that never saw the load) it retries
// once with the full script body, which also re-primes the cache.
func (s *RedisStore) Evaluate(ctx context.Context, proc Procedure) (ProcedureResult, error) {
	dedupKey := proc.DedupKey
	dedupTTL := proc.DedupTTL.Milliseconds()
	if dedupKey == "" {
		// The script needs a real key in KEYS[2] even when the claim is
		// disabled; it never touches it with a zero TTL.
		dedupKey = proc.LimitKey
		dedupTTL = 0
	}

	keys := []string{proc.LimitKey, dedupKey}
	args := []interface{}{
		string(proc.Limit.Mode),
		proc.Limit.Limit,
		proc.Limit.Period.Milliseconds(),
		proc.Now.UnixMilli(),
		dedupTTL,
		proc.AdmissionID,
	}

	result, err := s.client.EvalSha(ctx, s.scriptSHA, keys, args...).Result()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		result, err = s.client.Eval(ctx, evaluateScript, keys, args...).Result()
	}
	if err != nil {
		return ProcedureResult{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return ProcedureResult{}, fmt.Errorf("unexpected script reply %T", result)
	}
	verdict, _ := values[0].(string)
	remaining, _ := values[1].(int64)
	retryMS, _ := values[2].(int64)

	res := ProcedureResult{
		Remaining:  remaining,
		RetryAfter: time.Duration(retryMS) * time.Millisecond,
	}
	switch verdict {
	case "allow":
		res.Outcome = OutcomeAllow
	case "duplicate":
		res.Outcome = OutcomeDuplicate
	case "limited":
		res.Outcome = OutcomeRateLimited
	default:
		return ProcedureResult{}, fmt.Errorf("unexpected script verdict %q", verdict)
	}
	return res, nil
}
