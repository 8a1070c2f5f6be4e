package mock

import (
	"context"
	"sync"

	"github.com/nevra-labs/nevra/pkg/llm"
)

type LLMConfig struct {
	ResponseText string
	Err          error
	// GenerateFunc overrides the canned response when set.
	GenerateFunc func(ctx context.Context, input llm.Context) (llm.Response, error)
}

type LLMAdapter struct {
	cfg LLMConfig

	mu    sync.Mutex
	calls []llm.Context
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" && cfg.GenerateFunc == nil && cfg.Err == nil {
		cfg.ResponseText = "mock response"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	a.mu.Lock()
	a.calls = append(a.calls, input)
	a.mu.Unlock()
	if a.cfg.GenerateFunc != nil {
		return a.cfg.GenerateFunc(ctx, input)
	}
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	return llm.Response{Text: a.cfg.ResponseText}, nil
}

func (a *LLMAdapter) Calls() []llm.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Context, len(a.calls))
	copy(out, a.calls)
	return out
}

var _ llm.Adapter = (*LLMAdapter)(nil)
