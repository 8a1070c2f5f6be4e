// Package assemblyai implements streaming transcription against the
// AssemblyAI v3 realtime websocket API.
package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nevra-labs/nevra/pkg/adapters/stt"
	"github.com/nevra-labs/nevra/pkg/errorsx"
	"github.com/nevra-labs/nevra/pkg/logging"
)

type Config struct {
	APIKey  string
	BaseURL string
	// SampleRate of the inbound PCM stream in Hz.
	SampleRate int
	Encoding   string
	// FormatTurns requests punctuated transcripts. The upgrade is sent
	// after the first final so the opening turn stays low-latency.
	FormatTurns    bool
	SessionID      string
	ConnectTimeout time.Duration
	CloseTimeout   time.Duration
	QueueSize      int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "wss://streaming.assemblyai.com"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Encoding == "" {
		c.Encoding = "pcm_s16le"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 3 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// outbound is one unit of work for the writer goroutine, the sole writer
// on the websocket.
type outbound struct {
	audio     []byte
	control   []byte
	terminate bool
}

type Transcriber struct {
	cfg    Config
	cb     stt.Callbacks
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	connMu sync.Mutex
	conn   *websocket.Conn

	queue      chan outbound
	writerDone chan struct{}
	terminated chan struct{}

	closed    atomic.Bool
	dead      atomic.Bool
	retryMu   sync.Mutex
	retried   bool
	fatalOnce sync.Once
	closeOnce sync.Once

	upgraded bool
}

func New(cfg Config, cb stt.Callbacks) *Transcriber {
	cfg = cfg.withDefaults()
	return &Transcriber{
		cfg: cfg,
		cb:  cb,
		logger: logging.NewComponentLogger(slog.Default(), "assemblyai_stt").With(
			slog.String("session_id", cfg.SessionID)),
		queue:      make(chan outbound, cfg.QueueSize),
		writerDone: make(chan struct{}),
		terminated: make(chan struct{}),
	}
}

func (t *Transcriber) Name() string { return "assemblyai_streaming" }

func (t *Transcriber) Start(ctx context.Context) error {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return errorsx.Wrap(errors.New("assemblyai api key is not configured"), errorsx.ReasonConfigMissingKey)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t.ctx, t.cancel = context.WithCancel(ctx)

	conn, err := t.dial(t.ctx)
	if err != nil {
		t.cancel()
		return errorsx.Wrap(err, errorsx.ReasonSTTConnect)
	}
	t.setConn(conn)
	t.logger.Info("transcription stream connected",
		slog.Int("sample_rate", t.cfg.SampleRate),
		slog.String("encoding", t.cfg.Encoding))

	go t.readLoop(conn)
	go t.writeLoop()
	return nil
}

func (t *Transcriber) dial(ctx context.Context) (*websocket.Conn, error) {
	// The stream always opens unformatted; punctuation is switched on
	// mid-stream once the first final lands.
	url := fmt.Sprintf("%s/v3/ws?sample_rate=%d&encoding=%s&format_turns=false",
		t.cfg.BaseURL, t.cfg.SampleRate, t.cfg.Encoding)
	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.ConnectTimeout}
	header := http.Header{"Authorization": {t.cfg.APIKey}}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

func (t *Transcriber) setConn(conn *websocket.Conn) {
	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()
}

func (t *Transcriber) currentConn() *websocket.Conn {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.conn
}

// Feed queues one audio chunk for transmission. Chunks arriving after
// Close are silently dropped; chunks arriving after a terminal failure
// are rejected so the caller can surface the outage.
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
	case t.queue <- outbound{audio: buf}:
	default:
		t.logger.Warn("audio queue full, chunk dropped",
			slog.Int("size_bytes", len(chunk)))
	}
	return nil
}

// Close drains queued audio, asks the upstream to terminate, and tears
// the connection down. Safe to call more than once.
func (t *Transcriber) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		select {
		case t.queue <- outbound{terminate: true}:
		case <-t.writerDone:
		case <-time.After(t.cfg.CloseTimeout):
		}
		select {
		case <-t.writerDone:
		case <-time.After(t.cfg.CloseTimeout):
			t.logger.Warn("writer did not drain before timeout")
		}
		if t.cancel != nil {
			t.cancel()
		}
		if conn := t.currentConn(); conn != nil {
			_ = conn.Close()
		}
		t.logger.Info("transcription stream closed")
	})
	return nil
}

// writeLoop is the sole websocket writer: audio, configuration updates,
// and the terminate handshake all pass through here in order.
func (t *Transcriber) writeLoop() {
	defer close(t.writerDone)
	for {
		if t.dead.Load() {
			return
		}
		select {
		case <-t.ctx.Done():
			return
		case m := <-t.queue:
			switch {
			case m.terminate:
				t.sendTerminate()
				return
			case m.control != nil:
				if err := t.currentConn().WriteMessage(websocket.TextMessage, m.control); err != nil {
					t.logger.Warn("control message send failed",
						slog.String("error", err.Error()))
				}
			default:
				t.writeAudio(m.audio)
			}
		}
	}
}

func (t *Transcriber) writeAudio(chunk []byte) {
	err := t.currentConn().WriteMessage(websocket.BinaryMessage, chunk)
	if err == nil {
		return
	}
	if conn := t.reconnect(); conn != nil {
		if err = conn.WriteMessage(websocket.BinaryMessage, chunk); err == nil {
			return
		}
	}
	t.fatal(errorsx.Wrap(err, errorsx.ReasonSTTSend))
}

func (t *Transcriber) sendTerminate() {
	conn := t.currentConn()
	if conn == nil {
		return
	}
	msg, _ := json.Marshal(map[string]string{"type": "Terminate"})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return
	}
	select {
	case <-t.terminated:
	case <-time.After(t.cfg.CloseTimeout):
		t.logger.Warn("no termination confirmation before timeout")
	}
}

type serverMessage struct {
	Type            string `json:"type"`
	ID              string `json:"id"`
	Transcript      string `json:"transcript"`
	EndOfTurn       bool   `json:"end_of_turn"`
	TurnIsFormatted bool   `json:"turn_is_formatted"`
	AudioDuration   int    `json:"audio_duration_seconds"`
}

func (t *Transcriber) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if t.closed.Load() || t.ctx.Err() != nil {
				return
			}
			// A writer-side reconnect may have swapped the connection
			// underneath this loop already.
			if cur := t.currentConn(); cur != conn {
				conn = cur
				continue
			}
			if next := t.reconnect(); next != nil {
				conn = next
				continue
			}
			t.fatal(errorsx.Wrap(err, errorsx.ReasonSTTReconnect))
			return
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.logger.Warn("unparseable server message",
				slog.String("data", string(data)))
			continue
		}
		switch msg.Type {
		case "Begin":
			t.logger.Info("transcription session began",
				slog.String("upstream_id", msg.ID))
		case "Turn":
			t.handleTurn(msg)
		case "Termination":
			t.logger.Info("transcription session terminated",
				slog.Int("audio_duration_s", msg.AudioDuration))
			close(t.terminated)
			return
		default:
			t.logger.Debug("unhandled server message",
				slog.String("type", msg.Type))
		}
	}
}

func (t *Transcriber) handleTurn(msg serverMessage) {
	text := strings.TrimSpace(msg.Transcript)
	if text == "" {
		return
	}
	if !msg.EndOfTurn {
		if t.cb.OnPartial != nil {
			t.cb.OnPartial(text)
		}
		return
	}
	if t.cb.OnFinal != nil {
		t.cb.OnFinal(text)
	}
	if t.cfg.FormatTurns && !t.upgraded {
		t.upgraded = true
		update, _ := json.Marshal(map[string]any{
			"type":         "UpdateConfiguration",
			"format_turns": true,
		})
		select {
		case t.queue <- outbound{control: update}:
			t.logger.Info("requested formatted turns")
		default:
			t.upgraded = false
		}
	}
}

// reconnect redials at most once per stream lifetime. Returns the new
// connection, or nil when no retry remains.
func (t *Transcriber) reconnect() *websocket.Conn {
	t.retryMu.Lock()
	defer t.retryMu.Unlock()
	if t.retried || t.closed.Load() || t.ctx.Err() != nil {
		return nil
	}
	t.retried = true
	t.logger.Warn("stream interrupted, redialing")
	conn, err := t.dial(t.ctx)
	if err != nil {
		t.logger.Error("redial failed",
			slog.String("error", err.Error()))
		return nil
	}
	old := t.currentConn()
	t.setConn(conn)
	if old != nil {
		_ = old.Close()
	}
	t.logger.Info("stream reconnected")
	return conn
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

var _ stt.Transcriber = (*Transcriber)(nil)
