// Package elevenlabs implements sentence synthesis against the ElevenLabs
// text-to-speech REST API.
package elevenlabs

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

	"github.com/nevra-labs/nevra/pkg/adapters/tts"
	"github.com/nevra-labs/nevra/pkg/errorsx"
	"github.com/nevra-labs/nevra/pkg/logging"
	"github.com/nevra-labs/nevra/pkg/resilience"
)

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	BaseURL      string
	Timeout      time.Duration
}

type Synthesizer struct {
	cfg     Config
	client  *http.Client
	logger  *slog.Logger
	breaker *resilience.CircuitBreaker
}

func New(cfg Config) *Synthesizer {
	if cfg.VoiceID == "" {
		cfg.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_turbo_v2_5"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Synthesizer{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
		breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
	}
}

func (s *Synthesizer) Name() string { return "elevenlabs" }

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return nil, errorsx.Wrap(errors.New("elevenlabs api key is not configured"), errorsx.ReasonConfigMissingKey)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if !s.breaker.Allow() {
		return nil, errorsx.Wrap(
			resilience.RateLimitError{Provider: "elevenlabs", Message: "synthesis paused after repeated rate limits"},
			errorsx.ReasonTTSRateLimit)
	}

	b, err := json.Marshal(synthesizeRequest{Text: text, ModelID: s.cfg.ModelID})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		s.cfg.BaseURL, s.cfg.VoiceID, s.cfg.OutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		rl := resilience.RateLimitError{Provider: "elevenlabs", Message: string(body)}
		s.breaker.OnError(rl)
		return nil, rl
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, errorsx.Wrap(
			fmt.Errorf("synthesis failed with status %d: %s", resp.StatusCode, string(body)),
			errorsx.ReasonTTSSynthesize)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	s.breaker.OnSuccess()
	s.logger.Debug("sentence synthesized",
		slog.Int("text_len", len(text)),
		slog.Int("audio_bytes", len(audio)),
		slog.Duration("elapsed", time.Since(started)))
	return audio, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
