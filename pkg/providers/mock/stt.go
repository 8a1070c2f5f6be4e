package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/nevra-labs/nevra/pkg/adapters/stt"
)

// Transcriber is a scriptable STT capability for tests. Tests drive
// transcript callbacks directly via EmitPartial/EmitFinal/FailTerminal.
type Transcriber struct {
	cb       stt.Callbacks
	StartErr error

	mu      sync.Mutex
	started bool
	closed  bool
	dead    bool
	fed     [][]byte
	closes  int
}

func NewTranscriber(cb stt.Callbacks) *Transcriber {
	return &Transcriber{cb: cb}
}

func (m *Transcriber) Name() string { return "mock_stt" }

func (m *Transcriber) Start(ctx context.Context) error {
	if m.StartErr != nil {
		return m.StartErr
	}
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	return nil
}

func (m *Transcriber) Feed(chunk []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dead {
		return errors.New("transcriber dead")
	}
	if m.closed || !m.started {
		return nil
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	m.fed = append(m.fed, buf)
	return nil
}

func (m *Transcriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closes++
	return nil
}

// EmitPartial invokes the partial callback as the provider worker would.
func (m *Transcriber) EmitPartial(text string) {
	if m.cb.OnPartial != nil {
		m.cb.OnPartial(text)
	}
}

// EmitFinal invokes the final callback as the provider worker would.
func (m *Transcriber) EmitFinal(text string) {
	if m.cb.OnFinal != nil {
		m.cb.OnFinal(text)
	}
}

// FailTerminal marks the handle dead and reports the error upward.
func (m *Transcriber) FailTerminal(err error) {
	m.mu.Lock()
	m.dead = true
	m.mu.Unlock()
	if m.cb.OnError != nil {
		m.cb.OnError(err)
	}
}

func (m *Transcriber) Fed() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.fed))
	copy(out, m.fed)
	return out
}

func (m *Transcriber) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

var _ stt.Transcriber = (*Transcriber)(nil)
