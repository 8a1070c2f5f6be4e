package tts

import "context"

// Synthesizer defines the contract for any TTS vendor implementation.
// Synthesize is stateless from the caller's viewpoint; a failure for one
// sentence must not affect subsequent calls.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize converts one sentence of text to encoded audio bytes.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
