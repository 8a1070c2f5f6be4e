package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/nevra-labs/nevra/pkg/adapters/tts"
)

// Synthesizer produces deterministic audio bytes for tests. Sentences in
// FailOn return an error without affecting later calls.
type Synthesizer struct {
	FailOn map[string]bool

	mu    sync.Mutex
	calls []string
}

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

func (m *Synthesizer) Name() string { return "mock_tts" }

func (m *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls = append(m.calls, text)
	fail := m.FailOn[text]
	m.mu.Unlock()
	if fail {
		return nil, errors.New("synthesis failed")
	}
	return []byte("pcm:" + text), nil
}

func (m *Synthesizer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
