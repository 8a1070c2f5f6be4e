// Package agent implements the response generator: it routes each query
// either to the web-search fallback or to the LLM, and degrades every
// failure to a speakable reply instead of an error.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/nevra-labs/nevra/pkg/adapters/search"
	"github.com/nevra-labs/nevra/pkg/errorsx"
	"github.com/nevra-labs/nevra/pkg/llm"
	"github.com/nevra-labs/nevra/pkg/logging"
	"github.com/nevra-labs/nevra/pkg/metrics"
	"github.com/nevra-labs/nevra/pkg/resilience"
)

// searchTriggers marks a query as time-sensitive; matching queries go to
// the search fallback and never touch conversational memory.
var searchTriggers = []string{"latest", "today", "price", "weather", "news", "update", "current"}

// User-facing degraded replies. The raw provider error never crosses this
// boundary.
const (
	MsgMissingKey   = "Please configure your Gemini API key in the settings."
	MsgInvalidKey   = "Invalid Gemini API key. Please check your configuration."
	MsgQuota        = "API quota exceeded. Please check your API usage limits."
	MsgNetwork      = "Network connectivity issue. Please check your internet connection."
	MsgGeneric      = "I'm experiencing technical difficulties. Please try again in a moment."
	MsgSearchFailed = "I couldn't reach the web right now. Please try again in a moment."
)

type Config struct {
	Persona     string
	MaxAttempts int
	RetryDelay  time.Duration
}

// Responder generates one assistant reply per finalized user utterance.
type Responder struct {
	llm     llm.Adapter
	search  search.Searcher
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(adapter llm.Adapter, searcher search.Searcher, cfg Config) *Responder {
	if cfg.Persona == "" {
		cfg.Persona = DefaultPersona
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Responder{
		llm:     adapter,
		search:  searcher,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(slog.Default(), "agent"),
		metrics: metrics.Default,
	}
}

// Generate returns the reply text and the updated history. It never
// returns an error: failures resolve to a degraded reply paired with the
// unmodified input history. Search results are likewise not folded into
// history.
func (r *Responder) Generate(ctx context.Context, query string, history []llm.Message) (string, []llm.Message) {
	if r.search != nil && isTimeSensitive(query) {
		r.metrics.SearchFallbacks.Inc()
		answer, err := r.search.Search(ctx, query)
		if err != nil {
			r.logger.Warn("search fallback failed",
				slog.String("error", err.Error()))
			return MsgSearchFailed, history
		}
		return answer, history
	}

	attempt := 0
	resp, err := llm.Retry(ctx, llm.RetryConfig{
		MaxAttempts: r.cfg.MaxAttempts,
		BaseDelay:   r.cfg.RetryDelay,
		MaxDelay:    r.cfg.RetryDelay,
		IsRetryable: retryable,
	}, func(ctx context.Context) (llm.Response, error) {
		attempt++
		if attempt > 1 {
			r.metrics.LLMRetries.Inc()
		}
		return r.llm.Generate(ctx, llm.Context{
			System:   r.cfg.Persona,
			Messages: history,
			Query:    query,
		})
	})
	if err != nil {
		r.logger.Error("llm generation failed",
			slog.Int("attempts", attempt),
			slog.String("reason", string(errorsx.Reason(err))),
			slog.String("error", err.Error()))
		return degradedReply(err), history
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return MsgGeneric, history
	}
	updated := append(llm.CloneHistory(history),
		llm.Message{Role: llm.RoleUser, Text: query},
		llm.Message{Role: llm.RoleModel, Text: text},
	)
	return text, updated
}

func isTimeSensitive(query string) bool {
	q := strings.ToLower(query)
	for _, trigger := range searchTriggers {
		if strings.Contains(q, trigger) {
			return true
		}
	}
	return false
}

// Credential and quota failures cannot succeed on retry.
func retryable(err error) bool {
	if resilience.IsRateLimit(err) {
		return false
	}
	switch errorsx.Reason(err) {
	case errorsx.ReasonConfigMissingKey, errorsx.ReasonLLMAuth:
		return false
	}
	return llm.DefaultIsRetryable(err)
}

func degradedReply(err error) string {
	if resilience.IsRateLimit(err) {
		return MsgQuota
	}
	switch errorsx.Reason(err) {
	case errorsx.ReasonConfigMissingKey:
		return MsgMissingKey
	case errorsx.ReasonLLMAuth:
		return MsgInvalidKey
	case errorsx.ReasonLLMRateLimit:
		return MsgQuota
	case errorsx.ReasonLLMNetwork:
		return MsgNetwork
	}
	var nerr net.Error
	var uerr *url.Error
	if errors.As(err, &nerr) || errors.As(err, &uerr) {
		return MsgNetwork
	}
	return MsgGeneric
}
