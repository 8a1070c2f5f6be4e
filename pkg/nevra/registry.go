package nevra

import (
	"fmt"
	"strings"

	"github.com/nevra-labs/nevra/pkg/adapters/search"
	"github.com/nevra-labs/nevra/pkg/adapters/tts"
	"github.com/nevra-labs/nevra/pkg/llm"
	"github.com/nevra-labs/nevra/pkg/session"
)

type STTBuilder func(cfg Config, sessionID string) (session.TranscriberFactory, error)
type LLMBuilder func(cfg Config) (llm.Adapter, error)
type TTSBuilder func(cfg Config) (tts.Synthesizer, error)
type SearchBuilder func(cfg Config) (search.Searcher, error)

// ProviderRegistry maps vendor names from the config to constructors for
// each capability.
type ProviderRegistry struct {
	stt    map[string]STTBuilder
	llm    map[string]LLMBuilder
	tts    map[string]TTSBuilder
	search map[string]SearchBuilder
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt:    make(map[string]STTBuilder),
		llm:    make(map[string]LLMBuilder),
		tts:    make(map[string]TTSBuilder),
		search: make(map[string]SearchBuilder),
	}
}

func (r *ProviderRegistry) RegisterSTT(name string, builder STTBuilder) {
	r.stt[normalizeName(name)] = builder
}

func (r *ProviderRegistry) RegisterLLM(name string, builder LLMBuilder) {
	r.llm[normalizeName(name)] = builder
}

func (r *ProviderRegistry) RegisterTTS(name string, builder TTSBuilder) {
	r.tts[normalizeName(name)] = builder
}

func (r *ProviderRegistry) RegisterSearch(name string, builder SearchBuilder) {
	r.search[normalizeName(name)] = builder
}

func (r *ProviderRegistry) BuildSTTFactory(provider string, cfg Config, sessionID string) (session.TranscriberFactory, error) {
	fn := r.stt[normalizeName(provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", provider)
	}
	return fn(cfg, sessionID)
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg Config) (llm.Adapter, error) {
	fn := r.llm[normalizeName(provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildTTS(provider string, cfg Config) (tts.Synthesizer, error) {
	fn := r.tts[normalizeName(provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildSearch(provider string, cfg Config) (search.Searcher, error) {
	fn := r.search[normalizeName(provider)]
	if fn == nil {
		return nil, fmt.Errorf("search provider not registered: %s", provider)
	}
	return fn(cfg)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
