package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestEngine_RedisContextCancellation(t *testing.T) {
	opt, _ := redis.ParseURL("redis://localhost:6379")
	client := redis.NewClient(opt)
	defer client.Close()

	store, err := NewRedisStore(client)
	if err != nil {
		t.Skipf("Skipping test: Redis not available (%v)", err)
	}

	e, err := NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dec, err := e.Evaluate(ctx, EvalRequest{
		Operation: "submitResult",
		CallerID:  "D1",
		Limit:     Limit{Mode: ModeWindow, Limit: 100, Period: time.Second},
	})
	if err == nil {
		t.Fatal("Expected an error due to cancelled context, but got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected error to wrap context.Canceled, got: %v", err)
	}
	if dec.Outcome != OutcomeUnknown {
		t.Errorf("Expected unknown outcome, got %s", dec.Outcome)
	}
}

func TestEngine_RedisDeadline(t *testing.T) {
	opt, _ := redis.ParseURL("redis://localhost:6379")
	client := redis.NewClient(opt)
	defer client.Close()

	store, err := NewRedisStore(client)
	if err != nil {
		t.Skipf("Skipping test: Redis not available (%v)", err)
	}

	// An engine-level timeout far below any realistic round trip.
	e, err := NewEngine(store, WithTimeout(time.Nanosecond))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	dec, err := e.Evaluate(context.Background(), EvalRequest{
		Operation: "submitResult",
		CallerID:  "D1",
		Limit:     Limit{Mode: ModeWindow, Limit: 100, Period: time.Second},
	})
	if err == nil {
		t.Fatal("Expected timeout error, but got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected error to wrap context.DeadlineExceeded, got: %v", err)
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected error to wrap ErrStoreUnavailable, got: %v", err)
	}
	if dec.Outcome != OutcomeUnknown {
		t.Errorf("Expected unknown outcome on timeout, got %s", dec.Outcome)
	}
}
