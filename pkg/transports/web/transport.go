// Package web exposes the relay over a browser-facing websocket: binary
// frames carry microphone audio in, JSON events carry transcripts and
// synthesized speech out.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nevra-labs/nevra/pkg/events"
	"github.com/nevra-labs/nevra/pkg/logging"
	"github.com/nevra-labs/nevra/pkg/session"
)

//go:embed static
var staticFS embed.FS

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadLimit      int64    `mapstructure:"read_limit_bytes"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// SessionFactory wires one conversation's providers to the given sink.
// The transport owns the connection; the returned session owns the turn
// pipeline behind it.
type SessionFactory func(id string, sink session.Sink) (*session.Session, error)

type Transport struct {
	cfg        Config
	newSession SessionFactory
	server     *http.Server
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	runCtx context.Context

	mu     sync.Mutex
	active map[string]*session.Session

	draining atomic.Bool
}

func New(cfg Config, factory SessionFactory) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg:        cfg,
		newSession: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logging.NewComponentLogger(slog.Default(), "web_transport"),
		active: make(map[string]*session.Session),
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "web" }

func (t *Transport) Addr() string { return t.cfg.ServerAddr }

// Handler returns the full route surface, also used directly by tests.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(t.cfg.WebsocketPath, t)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	pages, _ := fs.Sub(staticFS, "static")
	mux.Handle("/", http.FileServer(http.FS(pages)))
	return mux
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.runCtx = ctx
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           t.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("server error",
				slog.String("error", err.Error()))
		}
	}()
	t.logger.Info("listening",
		slog.String("addr", t.cfg.ServerAddr),
		slog.String("ws_path", t.cfg.WebsocketPath))
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Close()
	}
	t.mu.Lock()
	sessions := make([]*session.Session, 0, len(t.active))
	for _, s := range t.active {
		sessions = append(sessions, s)
	}
	t.active = make(map[string]*session.Session)
	t.mu.Unlock()
	for _, s := range sessions {
		_ = s.Close()
	}
	return nil
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(t.cfg.ReadLimit)

	id := uuid.NewString()
	logger := t.logger.With(slog.String("session_id", id))
	sink := &wsSink{conn: conn}

	sess, err := t.newSession(id, sink)
	if err == nil {
		runCtx := t.runCtx
		if runCtx == nil {
			runCtx = context.Background()
		}
		err = sess.Start(runCtx)
	}
	if err != nil {
		logger.Error("session start failed",
			slog.String("error", err.Error()))
		_ = sink.Emit(events.Error("Unable to start the session. Check the server configuration."))
		return
	}
	t.register(id, sess)
	logger.Info("client connected",
		slog.String("remote", r.RemoteAddr))

	defer func() {
		t.deregister(id)
		_ = sess.Close()
		logger.Info("client disconnected")
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			if err := sess.FeedAudio(data); err != nil {
				logger.Debug("audio rejected",
					slog.String("error", err.Error()))
			}
		case websocket.TextMessage:
			sess.NotifyClientText(string(data))
		}
	}
}

func (t *Transport) register(id string, s *session.Session) {
	t.mu.Lock()
	t.active[id] = s
	t.mu.Unlock()
}

func (t *Transport) deregister(id string) {
	t.mu.Lock()
	delete(t.active, id)
	t.mu.Unlock()
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

// wsSink writes session events to the client connection. The session's
// primary loop is the only caller, so writes are already serialized.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Emit(ev events.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, b)
}
