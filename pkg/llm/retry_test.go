package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	var slept []time.Duration
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
	}
	resp, err := Retry(context.Background(), cfg, func(ctx context.Context) (Response, error) {
		attempts++
		if attempts < 3 {
			return Response{}, errors.New("transient")
		}
		return Response{Text: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("unexpected response: %q", resp.Text)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	for _, d := range slept {
		if d != 500*time.Millisecond {
			t.Fatalf("expected fixed backoff, got %v", d)
		}
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, Sleep: func(time.Duration) {}}
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) (Response, error) {
		attempts++
		return Response{}, errors.New("still broken")
	})
	if err == nil {
		t.Fatalf("expected error after exhaustion")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{
		MaxAttempts: 3,
		IsRetryable: func(err error) bool { return false },
		Sleep:       func(time.Duration) {},
	}
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) (Response, error) {
		attempts++
		return Response{}, errors.New("fatal")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, RetryConfig{}, func(ctx context.Context) (Response, error) {
		t.Fatalf("fn should not run with cancelled context")
		return Response{}, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
