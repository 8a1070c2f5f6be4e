// Package tavily implements the web-search capability against the Tavily
// search REST API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nevra-labs/nevra/pkg/adapters/search"
	"github.com/nevra-labs/nevra/pkg/errorsx"
	"github.com/nevra-labs/nevra/pkg/logging"
	"github.com/nevra-labs/nevra/pkg/resilience"
)

type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

type Searcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func New(cfg Config) *Searcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Searcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewComponentLogger(slog.Default(), "tavily_search"),
	}
}

func (s *Searcher) Name() string { return "tavily" }

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

// Search returns a concise textual answer for the query. Tavily's
// synthesized answer is preferred; when absent the top result snippets
// are stitched together.
func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return "", errorsx.Wrap(errors.New("tavily api key is not configured"), errorsx.ReasonConfigMissingKey)
	}

	b, err := json.Marshal(searchRequest{
		APIKey:        s.cfg.APIKey,
		Query:         query,
		IncludeAnswer: true,
		MaxResults:    s.cfg.MaxResults,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/search", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonSearchQuery)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return "", resilience.RateLimitError{Provider: "tavily", Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", errorsx.Wrap(
			fmt.Errorf("search failed with status %d: %s", resp.StatusCode, string(body)),
			errorsx.ReasonSearchQuery)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonSearchQuery)
	}
	if answer := strings.TrimSpace(payload.Answer); answer != "" {
		return answer, nil
	}
	var parts []string
	for _, r := range payload.Results {
		if c := strings.TrimSpace(r.Content); c != "" {
			parts = append(parts, c)
		}
		if len(parts) == 3 {
			break
		}
	}
	if len(parts) == 0 {
		return "", errorsx.Wrap(errors.New("no answer or results returned"), errorsx.ReasonSearchQuery)
	}
	s.logger.Debug("composed answer from result snippets",
		slog.Int("snippets", len(parts)))
	return strings.Join(parts, " "), nil
}

var _ search.Searcher = (*Searcher)(nil)
