package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/memoview/internal/errors"
	"github.com/vango-dev/memoview/pkg/loop"
	"github.com/vango-dev/memoview/pkg/memo"
	"github.com/vango-dev/memoview/pkg/metrics"
	"github.com/vango-dev/memoview/pkg/render"
)

// TracerName is the instrumentation name of the server's spans.
const TracerName = "memoview/server"

// SocketPath is the WebSocket route the page script connects to.
const SocketPath = "/ws"

// Server is the HTTP/WebSocket server.
type Server struct {
	config    Config
	loop      *loop.Loop
	store     memo.Observable
	newScreen func() Screen
	recorder  *metrics.Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
	renderer  *render.Renderer
	upgrader  websocket.Upgrader

	mu         sync.Mutex
	sessions   map[*Session]struct{}
	closing    bool
	httpServer *http.Server
	wg         sync.WaitGroup

	unsubscribe func()
}

// New creates a Server. Loop, Store and NewScreen are required.
func New(config Config) (*Server, error) {
	if config.Loop == nil || config.Store == nil || config.NewScreen == nil {
		return nil, errors.Newf(errors.CategoryServer, "server: Loop, Store and NewScreen are required")
	}
	config.applyDefaults()

	tracer := config.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}

	s := &Server{
		config:    config,
		loop:      config.Loop,
		store:     config.Store,
		newScreen: config.NewScreen,
		recorder:  config.Recorder,
		logger:    config.Logger.With("component", "server"),
		tracer:    tracer,
		renderer:  render.NewRenderer(render.RendererConfig{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		sessions: make(map[*Session]struct{}),
	}

	if s.recorder != nil {
		s.unsubscribe = s.store.Subscribe(s.recorder.RecordNotification)
	}
	return s, nil
}

// Handler returns the chi router serving the page, the socket, health and
// metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handlePage)
	r.Get(SocketPath, s.HandleWebSocket)
	r.Get("/healthz", s.handleHealth)

	if s.recorder != nil && s.config.MetricsPath != "" {
		r.Method(http.MethodGet, s.config.MetricsPath,
			promhttp.HandlerFor(s.recorder.Gatherer(), promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	var renderErr error
	err := s.loop.Do(r.Context(), func() {
		screen := s.newScreen()
		defer screen.Close()
		renderErr = s.renderer.RenderPage(&buf, render.PageData{
			Title:      s.config.Title,
			Body:       screen.Render(),
			Styles:     s.config.Styles,
			SocketPath: SocketPath,
		})
	})
	if err == nil {
		err = renderErr
	}
	if err != nil {
		s.logger.Error("page render failed", "error", err)
		http.Error(w, "page unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.Sessions(),
	})
}

// HandleWebSocket upgrades the request and starts a Session.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed",
			"error", errors.New("E202").FormatCompact(),
			"cause", err)
		s.recorder.RecordWebSocketError("upgrade")
		return
	}

	sess := newSession(s, conn)
	if !s.addSession(sess) {
		conn.Close()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	err = s.loop.Do(ctx, sess.mount)
	cancel()
	if err != nil {
		sess.logger.Error("session mount failed", "error", err)
		sess.Close()
	} else {
		sess.logger.Info("session started", "remote", r.RemoteAddr)
	}

	// Both loops exit promptly on a closed session.
	go func() {
		defer s.wg.Done()
		sess.readLoop()
	}()
	go func() {
		defer s.wg.Done()
		sess.writeLoop()
	}()
}

// addSession registers sess and reserves its two goroutines. It fails once
// shutdown has started.
func (s *Server) addSession(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(2)
	s.recorder.RecordSessionOpen()
	return true
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess]; ok {
		delete(s.sessions, sess)
		s.recorder.RecordSessionClose()
	}
}

// Sessions returns the number of connected sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ListenAndServe listens on the configured address and serves until ctx
// is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return errors.New("E201").
			WithDetailf("Cannot listen on %s", s.config.Address).
			WithSuggestion("Pick another port with --port or stop the process using it").
			Wrap(err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       5 * time.Minute,
	}
	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every session, stops the HTTP server and waits for the
// session goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	s.closing = true
	sessions := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("server shutdown complete")
	return nil
}
