// Package session implements the streaming session orchestrator: one
// instance owns the lifecycle of a voice conversation over a single
// client connection, from audio ingestion through transcription, response
// generation, sentence synthesis, and ordered event delivery.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nevra-labs/nevra/pkg/adapters/stt"
	"github.com/nevra-labs/nevra/pkg/adapters/tts"
	"github.com/nevra-labs/nevra/pkg/aggregators"
	"github.com/nevra-labs/nevra/pkg/errorsx"
	"github.com/nevra-labs/nevra/pkg/events"
	"github.com/nevra-labs/nevra/pkg/llm"
	"github.com/nevra-labs/nevra/pkg/logging"
	"github.com/nevra-labs/nevra/pkg/metrics"
)

// Sink delivers outbound events to the client. All calls happen on the
// session's primary loop, so implementations need no write serialization
// of their own.
type Sink interface {
	Emit(ev events.Event) error
}

// Responder generates one assistant reply per finalized user utterance.
// It must never fail: degraded replies come back as text.
type Responder interface {
	Generate(ctx context.Context, query string, history []llm.Message) (string, []llm.Message)
}

// TranscriberFactory builds the session's transcription handle with the
// session's callbacks installed.
type TranscriberFactory func(cb stt.Callbacks) (stt.Transcriber, error)

type Config struct {
	// QueueSize bounds the dispatch queue between the transcription
	// worker and the primary loop.
	QueueSize int
	// CloseTimeout bounds how long Close waits for the transcription
	// worker to tear down.
	CloseTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 8
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 3 * time.Second
	}
	return c
}

type workKind int

const (
	workFinal workKind = iota
	workAck
	workSTTError
)

type work struct {
	kind workKind
	text string
}

// Session is one live conversation. Turns are serialized: a final
// transcript arriving while a prior turn is still emitting waits in the
// dispatch queue until that turn's full audio sequence completes.
type Session struct {
	id        string
	cfg       Config
	newSTT    TranscriberFactory
	responder Responder
	synth     tts.Synthesizer
	sink      Sink
	logger    *slog.Logger
	metrics   *metrics.Metrics

	stt      stt.Transcriber
	loopCtx  context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	workCh   chan work

	// history is mutated only by the primary loop.
	history []llm.Message

	state       atomic.Int32
	sttDead     atomic.Bool
	loopStarted bool
	closeOnce   sync.Once
	closeErr    error
}

func New(id string, factory TranscriberFactory, responder Responder, synth tts.Synthesizer, sink Sink, cfg Config) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		id:        id,
		cfg:       cfg,
		newSTT:    factory,
		responder: responder,
		synth:     synth,
		sink:      sink,
		logger: logging.NewComponentLogger(slog.Default(), "session").With(
			slog.String("session_id", id)),
		metrics:  metrics.Default,
		loopDone: make(chan struct{}),
		workCh:   make(chan work, cfg.QueueSize),
	}
	s.state.Store(int32(StateConnected))
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

// Start creates the transcription handle and launches the primary loop.
// A credential or connect failure propagates and leaves the session
// unusable; no audio is ever forwarded in that case.
func (s *Session) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// The loop context exists before the transcriber so callbacks firing
	// during connect already have somewhere to hand off to.
	s.loopCtx, s.cancel = context.WithCancel(ctx)
	tr, err := s.newSTT(stt.Callbacks{
		OnPartial: s.onPartial,
		OnFinal:   s.onFinal,
		OnError:   s.onTranscriptionError,
	})
	if err != nil {
		s.cancel()
		return err
	}
	if err := tr.Start(ctx); err != nil {
		s.cancel()
		return err
	}
	s.stt = tr
	s.loopStarted = true
	s.setState(StateStreaming)
	s.metrics.SessionsTotal.Inc()
	s.metrics.SessionsActive.Inc()
	go s.loop()
	s.logger.Info("session started",
		slog.String("stt", tr.Name()))
	return nil
}

// FeedAudio forwards a client audio chunk to the transcription handle.
// Valid in any non-closed state; rejected with an error once the handle
// is dead so ingestion is never lost without signal.
func (s *Session) FeedAudio(chunk []byte) error {
	if s.stt == nil || s.State() == StateClosed {
		return errorsx.Wrap(errors.New("session closed"), errorsx.ReasonSTTClosed)
	}
	if s.sttDead.Load() {
		return errorsx.Wrap(errors.New("transcription unavailable"), errorsx.ReasonSTTClosed)
	}
	s.metrics.AudioBytesReceived.Add(float64(len(chunk)))
	return s.stt.Feed(chunk)
}

// NotifyClientText acknowledges a non-audio client frame.
func (s *Session) NotifyClientText(text string) {
	s.logger.Debug("client text frame",
		slog.String("text", text))
	select {
	case s.workCh <- work{kind: workAck}:
	default:
		s.logger.Warn("dispatch queue full, ack dropped")
	}
}

// Close tears the session down exactly once: cancels in-flight turn work
// and closes the transcription handle within a bounded timeout.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		if s.cancel != nil {
			s.cancel()
		}
		if s.stt != nil {
			done := make(chan error, 1)
			go func() { done <- s.stt.Close() }()
			select {
			case s.closeErr = <-done:
			case <-time.After(s.cfg.CloseTimeout):
				s.closeErr = errors.New("transcriber close timeout")
			}
		}
		if s.loopStarted {
			<-s.loopDone
			s.metrics.SessionsActive.Dec()
		}
		s.logger.Info("session closed")
	})
	return s.closeErr
}

// onPartial runs on the provider worker. Interim transcripts are counted
// but never surfaced as events.
func (s *Session) onPartial(text string) {
	s.metrics.TranscriptsPartial.Inc()
	s.logger.Debug("partial transcript",
		slog.String("text", text))
}

// onFinal runs on the provider worker; it only marshals the transcript
// onto the primary loop. Blocking here applies backpressure to the
// provider rather than dropping a turn.
func (s *Session) onFinal(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.metrics.TranscriptsFinal.Inc()
	w := work{kind: workFinal, text: text}
	select {
	case s.workCh <- w:
		return
	default:
	}
	s.logger.Warn("dispatch queue full, waiting")
	select {
	case s.workCh <- w:
	case <-s.loopCtx.Done():
	}
}

func (s *Session) onTranscriptionError(err error) {
	s.sttDead.Store(true)
	s.logger.Error("transcription ended",
		slog.String("reason", string(errorsx.Reason(err))),
		slog.String("error", err.Error()))
	select {
	case s.workCh <- work{kind: workSTTError, text: "Speech recognition is unavailable. Please reconnect."}:
	default:
	}
}

// loop is the session's primary control loop: the only goroutine that
// mutates history or writes to the sink.
func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.loopCtx.Done():
			return
		case w := <-s.workCh:
			switch w.kind {
			case workAck:
				s.emit(events.Ack("Message received"))
			case workSTTError:
				s.emit(events.Error(w.text))
			case workFinal:
				s.runTurn(w.text)
			}
		}
	}
}

// runTurn executes one full turn: Final, then Assistant, then the
// sentence audio events in split order. Any unexpected failure collapses
// to a single Error event and the session returns to streaming.
func (s *Session) runTurn(transcript string) {
	started := time.Now()
	s.setState(StateResponding)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("turn pipeline failure",
				slog.Any("panic", r))
			s.emit(events.Error("Sorry, something went wrong."))
		}
		if s.State() != StateClosed {
			s.setState(StateStreaming)
		}
		s.metrics.TurnDuration.Observe(time.Since(started).Seconds())
	}()

	s.metrics.TurnsTotal.Inc()
	s.logger.Info("final transcript",
		slog.String("text", transcript))
	s.emit(events.Final(transcript))

	reply, history := s.responder.Generate(s.loopCtx, transcript, s.history)
	s.history = history
	s.emit(events.Assistant(reply))

	for _, sentence := range aggregators.SplitSentences(reply) {
		audio, err := s.synthesize(sentence)
		if err != nil {
			if s.loopCtx.Err() != nil {
				return
			}
			s.metrics.SynthesisFailures.Inc()
			s.logger.Warn("sentence synthesis failed",
				slog.String("sentence", sentence),
				slog.String("error", err.Error()))
			continue
		}
		if len(audio) == 0 {
			continue
		}
		s.emit(events.Audio(audio))
	}
}

// synthesize offloads the blocking TTS call so cancellation still reaches
// the loop; results come back in strict sentence order because the loop
// waits per sentence.
func (s *Session) synthesize(sentence string) ([]byte, error) {
	type result struct {
		audio []byte
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		audio, err := s.synth.Synthesize(s.loopCtx, sentence)
		ch <- result{audio: audio, err: err}
	}()
	select {
	case <-s.loopCtx.Done():
		return nil, s.loopCtx.Err()
	case r := <-ch:
		return r.audio, r.err
	}
}

func (s *Session) emit(ev events.Event) {
	if err := s.sink.Emit(ev); err != nil {
		s.logger.Error("event emit failed",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()))
		return
	}
	s.metrics.EventsEmitted.WithLabelValues(string(ev.Type)).Inc()
}

func (s *Session) setState(state State) {
	if s.State() == StateClosed && state != StateClosed {
		return
	}
	s.state.Store(int32(state))
}
