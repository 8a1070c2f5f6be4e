package nevra

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
vendors:
  stt:
    provider: mock
  llm:
    provider: mock
  tts:
    provider: mock
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected server addr: %q", cfg.Server.Addr)
	}
	if cfg.Server.WebsocketPath != "/ws" {
		t.Fatalf("unexpected ws path: %q", cfg.Server.WebsocketPath)
	}
	if cfg.Session.QueueSize != 8 || cfg.Session.CloseTimeoutMS != 3000 {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Agent.MaxAttempts != 3 || cfg.Agent.RetryDelayMS != 500 {
		t.Fatalf("unexpected agent defaults: %+v", cfg.Agent)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Fatalf("unexpected logging defaults: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadConfigExpandsEnvInSettings(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret-key")
	path := writeConfig(t, `
vendors:
  stt:
    provider: assemblyai
    settings:
      api_key: ${TEST_GEMINI_KEY}
  llm:
    provider: gemini
    settings:
      api_key: ${TEST_GEMINI_KEY}
  tts:
    provider: mock
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vendors.LLM.Settings["api_key"] != "secret-key" {
		t.Fatalf("env not expanded: %v", cfg.Vendors.LLM.Settings)
	}
	if cfg.Vendors.STT.Settings["api_key"] != "secret-key" {
		t.Fatalf("env not expanded in stt settings: %v", cfg.Vendors.STT.Settings)
	}
}

func TestLoadConfigRequiresVendorProviders(t *testing.T) {
	path := writeConfig(t, `
vendors:
  stt:
    provider: mock
  tts:
    provider: mock
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing llm provider")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
