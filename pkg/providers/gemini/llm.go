// Package gemini implements the LLM capability against the Gemini
// generateContent REST API.
package gemini

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

	"github.com/nevra-labs/nevra/pkg/errorsx"
	"github.com/nevra-labs/nevra/pkg/llm"
	"github.com/nevra-labs/nevra/pkg/logging"
	"github.com/nevra-labs/nevra/pkg/resilience"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Adapter struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	keys   *keyCache
}

func New(cfg Config) *Adapter {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewComponentLogger(slog.Default(), "gemini_llm"),
		keys:   newKeyCache(time.Hour),
	}
}

func (a *Adapter) Name() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return llm.Response{}, errorsx.Wrap(errors.New("gemini api key is not configured"), errorsx.ReasonConfigMissingKey)
	}

	reqBody := generateRequest{
		Contents: make([]content, 0, len(input.Messages)+1),
	}
	if input.System != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: input.System}}}
	}
	for _, m := range input.Messages {
		reqBody.Contents = append(reqBody.Contents, content{
			Role:  string(m.Role),
			Parts: []part{{Text: m.Text}},
		})
	}
	reqBody.Contents = append(reqBody.Contents, content{
		Role:  string(llm.RoleUser),
		Parts: []part{{Text: input.Query}},
	})

	b, err := json.Marshal(reqBody)
	if err != nil {
		return llm.Response{}, err
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", a.cfg.BaseURL, a.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return llm.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return llm.Response{}, resilience.RateLimitError{Provider: "gemini", Message: string(body)}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errorsx.Wrap(errors.New(string(body)), errorsx.ReasonLLMAuth)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToUpper(string(body)), "API_KEY") {
			return llm.Response{}, errorsx.Wrap(errors.New(string(body)), errorsx.ReasonLLMAuth)
		}
		return llm.Response{}, errorsx.Wrap(errors.New(string(body)), errorsx.ReasonLLMGenerate)
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	if len(payload.Candidates) == 0 {
		return llm.Response{}, errorsx.Wrap(errors.New("no candidates in response"), errorsx.ReasonLLMGenerate)
	}
	var sb strings.Builder
	for _, p := range payload.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return llm.Response{}, errorsx.Wrap(errors.New("empty response from model"), errorsx.ReasonLLMGenerate)
	}
	return llm.Response{Text: text, FinishReason: payload.Candidates[0].FinishReason}, nil
}

// ValidateKey checks the configured credential with a minimal generation
// call. Results are cached by key hash so repeated checks are cheap.
func (a *Adapter) ValidateKey(ctx context.Context) (bool, string) {
	key := strings.TrimSpace(a.cfg.APIKey)
	if key == "" {
		return false, "API key is empty"
	}
	if ok, msg, hit := a.keys.get(key); hit {
		return ok, msg
	}
	_, err := a.Generate(ctx, llm.Context{Query: "Hello"})
	switch {
	case err == nil:
		a.keys.put(key, true, "API key is valid")
		return true, "API key is valid"
	case errorsx.HasReason(err, errorsx.ReasonLLMAuth):
		a.keys.put(key, false, "Invalid API key")
		return false, "Invalid API key"
	case resilience.IsRateLimit(err):
		a.keys.put(key, false, "API quota exceeded")
		return false, "API quota exceeded"
	default:
		a.logger.Warn("key validation inconclusive",
			slog.String("error", err.Error()))
		return false, "Validation error: " + err.Error()
	}
}

var _ llm.Adapter = (*Adapter)(nil)
