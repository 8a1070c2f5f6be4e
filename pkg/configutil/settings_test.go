package configutil

import "testing"

func TestDecodeSettingsNormalizesKeys(t *testing.T) {
	var out struct {
		APIKey     string `mapstructure:"api_key"`
		SampleRate int    `mapstructure:"sample_rate"`
	}
	input := map[string]any{
		"api-key":    "secret",
		"SampleRate": "16000",
	}
	if err := DecodeSettings(input, &out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.APIKey != "secret" {
		t.Fatalf("expected api key decoded, got %q", out.APIKey)
	}
	if out.SampleRate != 16000 {
		t.Fatalf("expected weakly typed int, got %d", out.SampleRate)
	}
}

func TestDecodeSettingsEmptyInput(t *testing.T) {
	var out struct {
		APIKey string `mapstructure:"api_key"`
	}
	if err := DecodeSettings(nil, &out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.APIKey != "" {
		t.Fatalf("expected zero value for empty input")
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("  ", "vendors.stt.settings.api_key"); err == nil {
		t.Fatalf("expected error for blank value")
	}
	if err := RequireString("ok", "vendors.stt.settings.api_key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
