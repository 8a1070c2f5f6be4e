package stt

import "context"

// Callbacks receive transcript events from the provider. They are invoked
// on the provider's background worker, never on the caller's goroutine;
// implementations must hand off before touching connection state.
type Callbacks struct {
	// OnPartial receives interim transcripts. Optional.
	OnPartial func(text string)
	// OnFinal receives finalized, non-empty, trimmed transcripts.
	OnFinal func(text string)
	// OnError receives a terminal transcription error, after which the
	// handle is dead and Feed is rejected. Optional.
	OnError func(err error)
}

// Transcriber defines the contract for any streaming STT vendor implementation.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Start opens the provider session. It must not block longer than the
	// configured connect timeout.
	Start(ctx context.Context) error
	// Feed enqueues an audio chunk for transmission. Non-blocking; chunk
	// order is preserved. Chunks fed after Close are dropped silently;
	// feeding a dead handle returns an error.
	Feed(chunk []byte) error
	// Close signals end-of-audio, drains pending chunks, and releases the
	// provider connection. Idempotent.
	Close() error
}
