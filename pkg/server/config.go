package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/memoview/pkg/loop"
	"github.com/vango-dev/memoview/pkg/memo"
	"github.com/vango-dev/memoview/pkg/metrics"
	"github.com/vango-dev/memoview/pkg/vdom"
)

// Screen is one client's rendering of the shared store. All methods are
// called on the loop.
type Screen interface {
	// Render returns the current tree. Subtrees that did not change may be
	// returned as the same pointers as last time.
	Render() *vdom.VNode

	// Handle applies a client action.
	Handle(action string) error

	// Close releases the screen's store subscriptions.
	Close()
}

// Config configures a Server.
type Config struct {
	// Loop runs every store access. Required.
	Loop *loop.Loop

	// Store is observed for changes. Required.
	Store memo.Observable

	// NewScreen builds a Screen. It is called on the loop, once per page
	// request and once per WebSocket session. Required.
	NewScreen func() Screen

	// Address is the listen address for ListenAndServe (default ":3000").
	Address string

	// Title is the page title.
	Title string

	// Styles is inline CSS for the page.
	Styles string

	// Recorder receives server metrics. Nil disables them.
	Recorder *metrics.Recorder

	// MetricsPath serves Recorder's registry when both are set.
	MetricsPath string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer

	// ReadTimeout is how long a session waits for any frame, pongs
	// included, before giving up on the client.
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// HeartbeatInterval is the WebSocket ping period. It must be shorter
	// than ReadTimeout.
	HeartbeatInterval time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// SendBuffer is the number of frames queued per session before the
	// session is dropped as too slow.
	SendBuffer int

	// CheckOrigin validates the WebSocket Origin header (default:
	// SameOriginCheck).
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns the timeouts and buffers used for unset fields.
func DefaultConfig() Config {
	return Config{
		Address:           ":3000",
		Title:             "Memoization Explorations",
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		SendBuffer:        64,
		CheckOrigin:       SameOriginCheck,
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.Title == "" {
		c.Title = defaults.Title
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaults.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = defaults.SendBuffer
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = defaults.CheckOrigin
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// SameOriginCheck accepts requests without an Origin header and requests
// whose Origin host matches the Host header.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return r.Host != "" && u.Host == r.Host
}
