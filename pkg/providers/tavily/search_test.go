package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nevra-labs/nevra/pkg/errorsx"
	"github.com/nevra-labs/nevra/pkg/resilience"
)

func TestSearchPrefersSynthesizedAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body searchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.APIKey != "tvly-key" || body.Query != "today's weather" {
			t.Errorf("unexpected request: %#v", body)
		}
		if !body.IncludeAnswer {
			t.Errorf("include_answer must be set")
		}
		w.Write([]byte(`{"answer":"Sunny, 22C.","results":[{"content":"ignored"}]}`))
	}))
	defer srv.Close()

	s := New(Config{APIKey: "tvly-key", BaseURL: srv.URL})
	answer, err := s.Search(context.Background(), "today's weather")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if answer != "Sunny, 22C." {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestSearchFallsBackToResultSnippets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer":"","results":[{"content":"First snippet."},{"content":"Second snippet."}]}`))
	}))
	defer srv.Close()

	s := New(Config{APIKey: "k", BaseURL: srv.URL})
	answer, err := s.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if answer != "First snippet. Second snippet." {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestSearchMissingKey(t *testing.T) {
	s := New(Config{})
	_, err := s.Search(context.Background(), "q")
	if !errorsx.HasReason(err, errorsx.ReasonConfigMissingKey) {
		t.Fatalf("expected missing key reason, got %v", err)
	}
}

func TestSearchRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := s.Search(context.Background(), "q")
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestSearchEmptyResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer":"","results":[]}`))
	}))
	defer srv.Close()

	s := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := s.Search(context.Background(), "q")
	if !errorsx.HasReason(err, errorsx.ReasonSearchQuery) {
		t.Fatalf("expected search reason, got %v", err)
	}
}
