package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/memoview/pkg/vdom"
)

// maxMessageSize bounds client frames; actions are tiny.
const maxMessageSize = 4096

// Session is one WebSocket client.
type Session struct {
	id     string
	server *Server
	conn   *websocket.Conn
	logger *slog.Logger

	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once

	// Loop-owned.
	screen      Screen
	tree        *vdom.VNode
	hids        *vdom.HIDGenerator
	unsubscribe func()
	dirty       bool
	seq         uint64

	actions atomic.Uint64
	patches atomic.Uint64
}

func generateSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "session-" + time.Now().Format("150405.000000")
	}
	return hex.EncodeToString(b)
}

func newSession(srv *Server, conn *websocket.Conn) *Session {
	id := generateSessionID()
	return &Session{
		id:     id,
		server: srv,
		conn:   conn,
		logger: srv.logger.With("session_id", id),
		send:   make(chan []byte, srv.config.SendBuffer),
		done:   make(chan struct{}),
		hids:   vdom.NewHIDGenerator(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// mount builds the session's screen, queues the full tree and subscribes
// to the store. Runs on the loop.
func (s *Session) mount() {
	if s.closed.Load() {
		return
	}

	s.screen = s.server.newScreen()
	s.tree = s.screen.Render()
	vdom.AssignHIDs(s.tree, s.hids)

	html, err := s.server.renderer.RenderToString(s.tree)
	if err != nil {
		s.logger.Error("initial render failed", "error", err)
		s.screen.Close()
		s.screen = nil
		return
	}

	s.seq++
	s.queue(ServerFrame{Seq: s.seq, HTML: html})
	s.unsubscribe = s.server.store.Subscribe(s.markDirty)
}

// markDirty is the store subscriber. Notifications are coalesced into a
// single flush on the next loop turn, after every other subscriber (the
// memoized regions in particular) has seen the change.
func (s *Session) markDirty() {
	if s.dirty || s.closed.Load() {
		return
	}
	s.dirty = true
	if !s.server.loop.Dispatch(s.flush) {
		// dirty stays set so later notifications coalesce into this flush.
		s.server.recorder.RecordDeferredFlush()
		s.runWhenFree("flush", s.flush)
	}
}

// runWhenFree runs fn on the loop from its own goroutine, waiting for queue
// space instead of dropping fn. It gives up when the loop closes or after
// the shutdown timeout, and closes the session if fn never ran.
func (s *Session) runWhenFree(name string, fn func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.server.config.ShutdownTimeout)
		defer cancel()
		if err := s.server.loop.Do(ctx, fn); err != nil {
			s.logger.Warn("loop call abandoned", "call", name, "error", err)
			s.Close()
		}
	}()
}

// flush re-renders, diffs and sends. Runs on the loop.
func (s *Session) flush() {
	s.dirty = false
	if s.closed.Load() || s.screen == nil {
		return
	}

	next := s.screen.Render()
	patches := vdom.Diff(s.tree, next)
	vdom.AssignHIDs(next, s.hids)
	s.tree = next

	if len(patches) == 0 {
		return
	}

	wire, err := encodePatches(s.server.renderer, patches)
	if err != nil {
		s.logger.Error("patch encode failed", "error", err)
		return
	}

	s.patches.Add(uint64(len(wire)))
	s.server.recorder.RecordPatches(len(wire))
	s.seq++
	s.queue(ServerFrame{Seq: s.seq, Patches: wire})
}

// queue hands a frame to the write loop. A client that falls a whole send
// buffer behind is disconnected.
func (s *Session) queue(frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("frame encode failed", "error", err)
		return
	}

	select {
	case s.send <- data:
	case <-s.done:
	default:
		s.logger.Warn("send buffer full, closing session")
		s.server.recorder.RecordWebSocketError("slow_client")
		s.Close()
	}
}

// readLoop decodes client frames and dispatches their actions onto the
// loop. It runs until the connection fails or the session closes.
func (s *Session) readLoop() {
	defer s.Close()

	cfg := s.server.config
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) && !s.closed.Load() {
				s.logger.Error("read error", "error", err)
				s.server.recorder.RecordWebSocketError("read")
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		frame, err := decodeClientFrame(msg)
		if err != nil {
			s.logger.Warn("invalid client frame", "error", err)
			s.queue(errorFrame(err))
			continue
		}
		s.dispatchAction(frame.Action)
	}
}

func (s *Session) dispatchAction(action string) {
	_, span := s.server.tracer.Start(context.Background(), "memoview.action",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("memoview.action", action),
			attribute.String("memoview.session_id", s.id),
		),
	)

	ok := s.server.loop.Dispatch(func() {
		defer span.End()
		if s.closed.Load() || s.screen == nil {
			span.SetStatus(codes.Error, "session closed")
			return
		}

		s.actions.Add(1)
		if err := s.screen.Handle(action); err != nil {
			s.logger.Warn("action rejected", "action", action, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.queue(errorFrame(err))
			return
		}
		span.SetStatus(codes.Ok, "")
	})
	if !ok {
		span.SetStatus(codes.Error, "dispatch dropped")
		span.End()
	}
}

// writeLoop owns the connection writer: queued frames and heartbeat
// pings.
func (s *Session) writeLoop() {
	defer s.Close()

	cfg := s.server.config
	ticker := time.NewTicker(cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !s.closed.Load() {
					s.logger.Error("write error", "error", err)
					s.server.recorder.RecordWebSocketError("write")
				}
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				if !s.closed.Load() {
					s.logger.Error("ping error", "error", err)
					s.server.recorder.RecordWebSocketError("ping")
				}
				return
			}

		case <-s.done:
			return
		}
	}
}

// Close disconnects the client and releases the screen on the loop. Safe
// to call from any goroutine, more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)

		s.release()

		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.conn.Close()

		s.server.removeSession(s)
		s.logger.Info("session closed",
			"actions", s.actions.Load(),
			"patches", s.patches.Load())
	})
}

// release schedules teardown. A full queue delays it rather than leaving
// the screen subscribed to the store.
func (s *Session) release() {
	if !s.server.loop.Dispatch(s.teardown) {
		s.runWhenFree("teardown", s.teardown)
	}
}

// teardown runs on the loop.
func (s *Session) teardown() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.screen != nil {
		s.screen.Close()
		s.screen = nil
	}
	s.tree = nil
}
