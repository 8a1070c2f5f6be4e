package configutil

import (
	"strings"
	"testing"
)

func TestValidateSettingsAccepts(t *testing.T) {
	err := ValidateSettings(map[string]any{
		"api-key":    "secret",
		"SampleRate": 16000,
	}, Schema{
		Required: []string{"api_key"},
		Optional: []string{"sample_rate"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSettingsMissingRequired(t *testing.T) {
	err := ValidateSettings(map[string]any{"api_key": "  "}, Schema{
		Required: []string{"api_key"},
	})
	if err == nil || !strings.Contains(err.Error(), "missing keys: api_key") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestValidateSettingsUnknownKey(t *testing.T) {
	err := ValidateSettings(map[string]any{
		"api_key": "secret",
		"vioce":   "typo",
	}, Schema{
		Required: []string{"api_key"},
		Optional: []string{"voice_id"},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown keys: vioce") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateSettingsEmptyInput(t *testing.T) {
	if err := ValidateSettings(nil, Schema{Optional: []string{"model"}}); err != nil {
		t.Fatalf("empty settings must pass when nothing is required: %v", err)
	}
}
