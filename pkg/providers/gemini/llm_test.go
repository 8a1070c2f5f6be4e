package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nevra-labs/nevra/pkg/errorsx"
	"github.com/nevra-labs/nevra/pkg/llm"
	"github.com/nevra-labs/nevra/pkg/resilience"
)

func candidateBody(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":"` + text + `"}]},"finishReason":"STOP"}]}`
}

func TestGenerateSendsHistoryAndSystemInstruction(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(candidateBody("All good.")))
	}))
	defer srv.Close()

	a := New(Config{APIKey: "test-key", BaseURL: srv.URL})
	resp, err := a.Generate(context.Background(), llm.Context{
		System: "You are a voice assistant.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Text: "hi"},
			{Role: llm.RoleModel, Text: "hello"},
		},
		Query: "how are you",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "All good." {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "You are a voice assistant." {
		t.Fatalf("system instruction not sent: %#v", got.SystemInstruction)
	}
	if len(got.Contents) != 3 {
		t.Fatalf("expected history plus query, got %d contents", len(got.Contents))
	}
	last := got.Contents[2]
	if last.Role != "user" || last.Parts[0].Text != "how are you" {
		t.Fatalf("query must be the final user content, got %#v", last)
	}
}

func TestGenerateMissingKey(t *testing.T) {
	a := New(Config{})
	_, err := a.Generate(context.Background(), llm.Context{Query: "hi"})
	if !errorsx.HasReason(err, errorsx.ReasonConfigMissingKey) {
		t.Fatalf("expected missing key reason, got %v", err)
	}
}

func TestGenerateRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := a.Generate(context.Background(), llm.Context{Query: "hi"})
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestGenerateAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"key not valid"}}`))
	}))
	defer srv.Close()

	a := New(Config{APIKey: "bad", BaseURL: srv.URL})
	_, err := a.Generate(context.Background(), llm.Context{Query: "hi"})
	if !errorsx.HasReason(err, errorsx.ReasonLLMAuth) {
		t.Fatalf("expected auth reason, got %v", err)
	}
}

func TestGenerateBadRequestWithKeyDetailIsAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"status":"INVALID_ARGUMENT","details":[{"reason":"API_KEY_INVALID"}]}}`))
	}))
	defer srv.Close()

	a := New(Config{APIKey: "bad", BaseURL: srv.URL})
	_, err := a.Generate(context.Background(), llm.Context{Query: "hi"})
	if !errorsx.HasReason(err, errorsx.ReasonLLMAuth) {
		t.Fatalf("expected auth reason for API_KEY detail, got %v", err)
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	a := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := a.Generate(context.Background(), llm.Context{Query: "hi"})
	if !errorsx.HasReason(err, errorsx.ReasonLLMGenerate) {
		t.Fatalf("expected generate reason, got %v", err)
	}
}

func TestValidateKeyCachesResult(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(candidateBody("ok")))
	}))
	defer srv.Close()

	a := New(Config{APIKey: "k", BaseURL: srv.URL})
	ok, _ := a.ValidateKey(context.Background())
	if !ok {
		t.Fatalf("expected valid key")
	}
	ok, _ = a.ValidateKey(context.Background())
	if !ok {
		t.Fatalf("expected cached valid key")
	}
	if calls != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls)
	}
}

func TestValidateKeyInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := New(Config{APIKey: "bad", BaseURL: srv.URL})
	ok, msg := a.ValidateKey(context.Background())
	if ok {
		t.Fatalf("expected invalid key")
	}
	if msg != "Invalid API key" {
		t.Fatalf("unexpected message: %q", msg)
	}
}
