package nevra

import (
	"context"
	"testing"

	"github.com/nevra-labs/nevra/pkg/llm"
)

func mockConfig() Config {
	return Config{
		Vendors: VendorsConfig{
			STT:    VendorConfig{Provider: "mock"},
			LLM:    VendorConfig{Provider: "mock"},
			TTS:    VendorConfig{Provider: "mock"},
			Search: VendorConfig{Provider: "mock"},
		},
	}
}

func TestNewAppWithMockVendors(t *testing.T) {
	app, err := NewApp(mockConfig())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if app == nil {
		t.Fatal("expected app")
	}
}

func TestNewAppUnknownProvider(t *testing.T) {
	cfg := mockConfig()
	cfg.Vendors.LLM.Provider = "nonexistent"
	if _, err := NewApp(cfg); err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}

func TestNewAppWithoutSearchProvider(t *testing.T) {
	cfg := mockConfig()
	cfg.Vendors.Search.Provider = ""
	if _, err := NewApp(cfg); err != nil {
		t.Fatalf("search must be optional: %v", err)
	}
}

func TestRegistryIsCaseInsensitive(t *testing.T) {
	cfg := mockConfig()
	cfg.Vendors.LLM.Provider = " Mock "
	if _, err := NewApp(cfg); err != nil {
		t.Fatalf("provider lookup must normalize names: %v", err)
	}
}

func TestSettingsTypoFailsAtBoot(t *testing.T) {
	cfg := mockConfig()
	cfg.Vendors.STT.Provider = "assemblyai"
	cfg.Vendors.STT.Settings = map[string]any{
		"api_key":      "k",
		"sample_rtae":  16000,
		"format_turns": true,
	}
	if _, err := NewApp(cfg); err == nil {
		t.Fatal("expected unknown settings key to be rejected")
	}
}

func TestMissingSTTKeyFailsAtBoot(t *testing.T) {
	cfg := mockConfig()
	cfg.Vendors.STT.Provider = "deepgram"
	cfg.Vendors.STT.Settings = map[string]any{"model": "nova-2"}
	if _, err := NewApp(cfg); err == nil {
		t.Fatal("expected missing stt api key to be rejected")
	}
}

type validatingAdapter struct {
	called bool
}

func (v *validatingAdapter) Name() string { return "validating" }

func (v *validatingAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	return llm.Response{Text: "ok"}, nil
}

func (v *validatingAdapter) ValidateKey(ctx context.Context) (bool, string) {
	v.called = true
	return false, "key rejected upstream"
}

func TestCheckCredentialsProbesValidatingAdapter(t *testing.T) {
	adapter := &validatingAdapter{}
	registry := NewProviderRegistry()
	RegisterDefaults(registry)
	registry.RegisterLLM("validating", func(cfg Config) (llm.Adapter, error) {
		return adapter, nil
	})

	cfg := mockConfig()
	cfg.Vendors.LLM.Provider = "validating"
	app, err := NewAppWithRegistry(cfg, registry)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	app.CheckCredentials(context.Background())
	if !adapter.called {
		t.Fatal("expected the credential probe to reach the adapter")
	}

	// Adapters without a validator are skipped without error.
	plain, err := NewApp(mockConfig())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	plain.CheckCredentials(context.Background())
}
