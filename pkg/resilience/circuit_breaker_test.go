package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	if !cb.Allow() {
		t.Fatalf("expected breaker closed initially")
	}
	cb.OnError(RateLimitError{Provider: "gemini"})
	if !cb.Allow() {
		t.Fatalf("expected breaker closed below threshold")
	}
	cb.OnError(RateLimitError{Provider: "gemini"})
	if cb.Allow() {
		t.Fatalf("expected breaker open after threshold")
	}
	cb.OnSuccess()
	if !cb.Allow() {
		t.Fatalf("expected breaker reset after success")
	}
}

func TestCircuitBreakerIgnoresOtherErrors(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	cb.OnError(errors.New("transient"))
	if !cb.Allow() {
		t.Fatalf("expected non-rate-limit errors to be ignored")
	}
}

func TestIsRateLimit(t *testing.T) {
	if !IsRateLimit(RateLimitError{Provider: "elevenlabs"}) {
		t.Fatalf("expected rate limit detection")
	}
	if IsRateLimit(errors.New("boom")) {
		t.Fatalf("did not expect rate limit detection")
	}
}
