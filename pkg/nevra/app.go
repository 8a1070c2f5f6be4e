// Package nevra assembles the voice relay from its configuration: it
// resolves vendor providers, builds the per-connection session factory,
// and owns the transport lifecycle.
package nevra

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nevra-labs/nevra/pkg/adapters/search"
	"github.com/nevra-labs/nevra/pkg/adapters/stt"
	"github.com/nevra-labs/nevra/pkg/adapters/tts"
	"github.com/nevra-labs/nevra/pkg/agent"
	"github.com/nevra-labs/nevra/pkg/configutil"
	"github.com/nevra-labs/nevra/pkg/llm"
	"github.com/nevra-labs/nevra/pkg/logging"
	"github.com/nevra-labs/nevra/pkg/providers/assemblyai"
	"github.com/nevra-labs/nevra/pkg/providers/deepgram"
	"github.com/nevra-labs/nevra/pkg/providers/elevenlabs"
	"github.com/nevra-labs/nevra/pkg/providers/gemini"
	"github.com/nevra-labs/nevra/pkg/providers/mock"
	"github.com/nevra-labs/nevra/pkg/providers/tavily"
	"github.com/nevra-labs/nevra/pkg/session"
	"github.com/nevra-labs/nevra/pkg/transports/web"
)

type App struct {
	cfg       Config
	transport *web.Transport
	llm       llm.Adapter
	logger    *slog.Logger
}

func NewApp(cfg Config) (*App, error) {
	registry := NewProviderRegistry()
	RegisterDefaults(registry)
	return NewAppWithRegistry(cfg, registry)
}

func NewAppWithRegistry(cfg Config, registry *ProviderRegistry) (*App, error) {
	logger := logging.NewComponentLogger(slog.Default(), "app")

	llmAdapter, err := registry.BuildLLM(cfg.Vendors.LLM.Provider, cfg)
	if err != nil {
		return nil, err
	}
	synth, err := registry.BuildTTS(cfg.Vendors.TTS.Provider, cfg)
	if err != nil {
		return nil, err
	}
	var searcher search.Searcher
	if strings.TrimSpace(cfg.Vendors.Search.Provider) != "" {
		searcher, err = registry.BuildSearch(cfg.Vendors.Search.Provider, cfg)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("no search provider configured, time-sensitive queries will degrade")
	}

	responder := agent.New(llmAdapter, searcher, agent.Config{
		Persona:     cfg.Agent.Persona,
		MaxAttempts: cfg.Agent.MaxAttempts,
		RetryDelay:  time.Duration(cfg.Agent.RetryDelayMS) * time.Millisecond,
	})

	// Resolve the STT builder once here so a bad provider name or a
	// settings typo fails at boot, not on the first connection.
	if _, err := registry.BuildSTTFactory(cfg.Vendors.STT.Provider, cfg, "boot-check"); err != nil {
		return nil, err
	}

	factory := func(id string, sink session.Sink) (*session.Session, error) {
		sttFactory, err := registry.BuildSTTFactory(cfg.Vendors.STT.Provider, cfg, id)
		if err != nil {
			return nil, err
		}
		return session.New(id, sttFactory, responder, synth, sink, session.Config{
			QueueSize:    cfg.Session.QueueSize,
			CloseTimeout: time.Duration(cfg.Session.CloseTimeoutMS) * time.Millisecond,
		}), nil
	}

	transport := web.New(web.Config{
		ServerAddr:     cfg.Server.Addr,
		WebsocketPath:  cfg.Server.WebsocketPath,
		AllowAnyOrigin: cfg.Server.AllowAnyOrigin,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, factory)

	logger.Info("application assembled",
		slog.String("stt", cfg.Vendors.STT.Provider),
		slog.String("llm", cfg.Vendors.LLM.Provider),
		slog.String("tts", cfg.Vendors.TTS.Provider),
		slog.String("search", cfg.Vendors.Search.Provider))

	return &App{cfg: cfg, transport: transport, llm: llmAdapter, logger: logger}, nil
}

func (a *App) Start(ctx context.Context) error {
	return a.transport.Start(ctx)
}

// CheckCredentials probes vendor credentials for adapters that support
// validation. Failures are logged, not fatal: a bad key degrades
// per-turn replies rather than blocking startup.
func (a *App) CheckCredentials(ctx context.Context) {
	type keyValidator interface {
		ValidateKey(ctx context.Context) (bool, string)
	}
	if v, ok := a.llm.(keyValidator); ok {
		if valid, detail := v.ValidateKey(ctx); !valid {
			a.logger.Warn("llm credential check failed", slog.String("detail", detail))
		} else {
			a.logger.Info("llm credentials verified")
		}
	}
}

// Drain stops accepting connections and closes live sessions.
func (a *App) Drain() error {
	return a.transport.Stop()
}

type assemblyAISettings struct {
	APIKey      string `mapstructure:"api_key"`
	SampleRate  *int   `mapstructure:"sample_rate"`
	FormatTurns *bool  `mapstructure:"format_turns"`
}

type deepgramSettings struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Language   string `mapstructure:"language"`
	SampleRate *int   `mapstructure:"sample_rate"`
	Interim    *bool  `mapstructure:"interim"`
}

type geminiSettings struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type elevenLabsSettings struct {
	APIKey       string `mapstructure:"api_key"`
	VoiceID      string `mapstructure:"voice_id"`
	ModelID      string `mapstructure:"model_id"`
	OutputFormat string `mapstructure:"output_format"`
}

type tavilySettings struct {
	APIKey     string `mapstructure:"api_key"`
	MaxResults *int   `mapstructure:"max_results"`
}

type mockLLMSettings struct {
	ResponseText string `mapstructure:"response_text"`
}

type mockSearchSettings struct {
	Answer string `mapstructure:"answer"`
}

// RegisterDefaults installs every built-in provider. The mock vendors
// keep the full pipeline runnable without external credentials.
//
// STT credentials are required at boot because without them every
// connection would fail to start. LLM, TTS, and search keys stay
// optional here: a missing key surfaces as a spoken degraded reply.
func RegisterDefaults(r *ProviderRegistry) {
	r.RegisterSTT("assemblyai", func(cfg Config, sessionID string) (session.TranscriberFactory, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"sample_rate", "format_turns"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.stt.settings: %w", err)
		}
		var s assemblyAISettings
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &s); err != nil {
			return nil, err
		}
		return func(cb stt.Callbacks) (stt.Transcriber, error) {
			return assemblyai.New(assemblyai.Config{
				APIKey:      s.APIKey,
				SampleRate:  configutil.IntValue(s.SampleRate, 16000),
				FormatTurns: configutil.BoolValue(s.FormatTurns, true),
				SessionID:   sessionID,
			}, cb), nil
		}, nil
	})

	r.RegisterSTT("deepgram", func(cfg Config, sessionID string) (session.TranscriberFactory, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "language", "sample_rate", "interim"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.stt.settings: %w", err)
		}
		var s deepgramSettings
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &s); err != nil {
			return nil, err
		}
		return func(cb stt.Callbacks) (stt.Transcriber, error) {
			return deepgram.New(deepgram.Config{
				APIKey:     s.APIKey,
				Model:      s.Model,
				Language:   s.Language,
				SampleRate: configutil.IntValue(s.SampleRate, 16000),
				Interim:    configutil.BoolValue(s.Interim, true),
				SessionID:  sessionID,
			}, cb), nil
		}, nil
	})

	r.RegisterSTT("mock", func(cfg Config, sessionID string) (session.TranscriberFactory, error) {
		return func(cb stt.Callbacks) (stt.Transcriber, error) {
			return mock.NewTranscriber(cb), nil
		}, nil
	})

	r.RegisterLLM("gemini", func(cfg Config) (llm.Adapter, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.LLM.Settings, configutil.Schema{
			Optional: []string{"api_key", "model"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.llm.settings: %w", err)
		}
		var s geminiSettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &s); err != nil {
			return nil, err
		}
		return gemini.New(gemini.Config{APIKey: s.APIKey, Model: s.Model}), nil
	})

	r.RegisterLLM("mock", func(cfg Config) (llm.Adapter, error) {
		var s mockLLMSettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &s); err != nil {
			return nil, err
		}
		if s.ResponseText == "" {
			s.ResponseText = "This is a canned reply."
		}
		return mock.NewLLMAdapter(mock.LLMConfig{ResponseText: s.ResponseText}), nil
	})

	r.RegisterTTS("elevenlabs", func(cfg Config) (tts.Synthesizer, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"api_key", "voice_id", "model_id", "output_format"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.tts.settings: %w", err)
		}
		var s elevenLabsSettings
		if err := configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &s); err != nil {
			return nil, err
		}
		return elevenlabs.New(elevenlabs.Config{
			APIKey:       s.APIKey,
			VoiceID:      s.VoiceID,
			ModelID:      s.ModelID,
			OutputFormat: s.OutputFormat,
		}), nil
	})

	r.RegisterTTS("mock", func(cfg Config) (tts.Synthesizer, error) {
		return mock.NewSynthesizer(), nil
	})

	r.RegisterSearch("tavily", func(cfg Config) (search.Searcher, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.Search.Settings, configutil.Schema{
			Optional: []string{"api_key", "max_results"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.search.settings: %w", err)
		}
		var s tavilySettings
		if err := configutil.DecodeSettings(cfg.Vendors.Search.Settings, &s); err != nil {
			return nil, err
		}
		return tavily.New(tavily.Config{
			APIKey:     s.APIKey,
			MaxResults: configutil.IntValue(s.MaxResults, 5),
		}), nil
	})

	r.RegisterSearch("mock", func(cfg Config) (search.Searcher, error) {
		var s mockSearchSettings
		if err := configutil.DecodeSettings(cfg.Vendors.Search.Settings, &s); err != nil {
			return nil, err
		}
		return mock.NewSearcher(s.Answer), nil
	})
}
