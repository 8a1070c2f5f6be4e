// Package deepgram implements streaming transcription on the Deepgram
// live SDK.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nevra-labs/nevra/pkg/adapters/stt"
	"github.com/nevra-labs/nevra/pkg/errorsx"
	"github.com/nevra-labs/nevra/pkg/logging"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey         string
	Model          string
	Language       string
	SampleRate     int
	Encoding       string
	Interim        bool
	SessionID      string
	ConnectTimeout time.Duration
	QueueSize      int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Encoding == "" {
		c.Encoding = "linear16"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

type Transcriber struct {
	cfg    Config
	cb     stt.Callbacks
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	dgClient   *client.WSCallback
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter

	// queue carries audio chunks to the pipe worker; a nil element is
	// the drain sentinel.
	queue      chan []byte
	workerDone chan struct{}

	closed    atomic.Bool
	dead      atomic.Bool
	retryMu   sync.Mutex
	retried   bool
	fatalOnce sync.Once
	closeOnce sync.Once

	metaLogged bool
}

func New(cfg Config, cb stt.Callbacks) *Transcriber {
	cfg = cfg.withDefaults()
	return &Transcriber{
		cfg: cfg,
		cb:  cb,
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt").With(
			slog.String("session_id", cfg.SessionID)),
		queue:      make(chan []byte, cfg.QueueSize),
		workerDone: make(chan struct{}),
	}
}

func (t *Transcriber) Name() string { return "deepgram_streaming" }

func (t *Transcriber) Start(ctx context.Context) error {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return errorsx.Wrap(errors.New("deepgram api key is not configured"), errorsx.ReasonConfigMissingKey)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.pipeReader, t.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          t.cfg.Model,
		Language:       t.cfg.Language,
		Encoding:       t.cfg.Encoding,
		SampleRate:     t.cfg.SampleRate,
		InterimResults: t.cfg.Interim,
		SmartFormat:    true,
	}

	t.logger.Info("initializing deepgram connection",
		slog.String("model", t.cfg.Model),
		slog.Int("sample_rate", t.cfg.SampleRate))

	cbk := &callback{parent: t}
	dgClient, err := client.NewWSUsingCallback(t.ctx, t.cfg.APIKey, clientOptions, transcriptOptions, cbk)
	if err != nil {
		t.cancel()
		return errorsx.Wrap(err, errorsx.ReasonSTTConnect)
	}
	t.dgClient = dgClient

	if err := t.connectWithTimeout(); err != nil {
		t.cancel()
		return err
	}

	go func() {
		if err := t.dgClient.Stream(t.pipeReader); err != nil && t.ctx.Err() == nil && !t.closed.Load() {
			t.logger.Error("deepgram stream ended",
				slog.String("error", err.Error()))
		}
	}()
	go t.writeLoop()
	return nil
}

// connectWithTimeout bounds the blocking SDK connect so a stalled
// handshake cannot hang session startup.
func (t *Transcriber) connectWithTimeout() error {
	done := make(chan bool, 1)
	go func() { done <- t.dgClient.Connect() }()
	select {
	case connected := <-done:
		if !connected {
			return errorsx.Wrap(errors.New("deepgram connection failed"), errorsx.ReasonSTTConnect)
		}
		t.logger.Info("deepgram connected")
		return nil
	case <-time.After(t.cfg.ConnectTimeout):
		return errorsx.Wrap(fmt.Errorf("deepgram connect timed out after %s", t.cfg.ConnectTimeout), errorsx.ReasonSTTConnect)
	}
}

func (t *Transcriber) Feed(chunk []byte) error {
	if t.closed.Load() {
		return nil
	}
	if t.dead.Load() {
		return errorsx.Wrap(errors.New("transcription stream is down"), errorsx.ReasonSTTSend)
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	select {
	case t.queue <- buf:
	default:
		t.logger.Warn("audio queue full, chunk dropped",
			slog.Int("size_bytes", len(chunk)))
	}
	return nil
}

func (t *Transcriber) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		select {
		case t.queue <- nil:
		case <-t.workerDone:
		case <-time.After(3 * time.Second):
		}
		select {
		case <-t.workerDone:
		case <-time.After(3 * time.Second):
			t.logger.Warn("pipe worker did not drain before timeout")
		}
		if t.cancel != nil {
			t.cancel()
		}
		if t.dgClient != nil {
			t.dgClient.Stop()
		}
		t.logger.Info("deepgram connection closed")
	})
	return nil
}

// writeLoop drains the audio queue into the SDK pipe; the nil sentinel
// closes the pipe so the SDK flushes its remaining transcripts.
func (t *Transcriber) writeLoop() {
	defer close(t.workerDone)
	for {
		select {
		case <-t.ctx.Done():
			_ = t.pipeWriter.Close()
			return
		case chunk := <-t.queue:
			if chunk == nil {
				_ = t.pipeWriter.Close()
				return
			}
			if _, err := t.pipeWriter.Write(chunk); err != nil {
				if !t.closed.Load() && t.ctx.Err() == nil {
					t.fatal(errorsx.Wrap(err, errorsx.ReasonSTTSend))
				}
				return
			}
		}
	}
}

// reconnect redials at most once per stream lifetime.
func (t *Transcriber) reconnect() bool {
	t.retryMu.Lock()
	defer t.retryMu.Unlock()
	if t.retried || t.closed.Load() || t.ctx.Err() != nil {
		return false
	}
	t.retried = true
	t.logger.Warn("stream interrupted, redialing")
	if connected := t.dgClient.Connect(); !connected {
		t.logger.Error("redial failed")
		return false
	}
	t.logger.Info("stream reconnected")
	return true
}

func (t *Transcriber) fatal(err error) {
	t.fatalOnce.Do(func() {
		t.dead.Store(true)
		t.logger.Error("transcription stream failed",
			slog.String("error", err.Error()))
		if t.cb.OnError != nil {
			t.cb.OnError(err)
		}
	})
}

// --- Callback Implementation ---

type callback struct {
	parent *Transcriber
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram connection opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if transcript == "" {
		return nil
	}
	isFinal := mr.IsFinal || mr.SpeechFinal

	c.parent.logger.Debug("transcript received",
		slog.String("transcript", transcript),
		slog.Bool("is_final", isFinal))

	if isFinal {
		if c.parent.cb.OnFinal != nil {
			c.parent.cb.OnFinal(transcript)
		}
	} else if c.parent.cb.OnPartial != nil {
		c.parent.cb.OnPartial(transcript)
	}
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	if !c.parent.metaLogged {
		c.parent.metaLogged = true
		c.parent.logger.Info("deepgram metadata received",
			slog.String("request_id", md.RequestID))
	}
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.parent.logger.Debug("speech started")
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.logger.Debug("utterance end")
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram connection closed by upstream")
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	if c.parent.closed.Load() || c.parent.ctx.Err() != nil {
		return nil
	}
	if c.parent.reconnect() {
		return nil
	}
	c.parent.fatal(errorsx.Wrap(
		fmt.Errorf("deepgram error %s: %s", er.ErrCode, er.ErrMsg),
		errorsx.ReasonSTTReconnect))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram unhandled event",
		slog.String("data", string(byData)))
	return nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
var _ msginterfaces.LiveMessageCallback = (*callback)(nil)
