package main

import (
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/memoview/internal/config"
)

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// tracerProvider returns the global provider when tracing is enabled, so an
// exporter installed with otel.SetTracerProvider receives the spans, and a
// no-op provider otherwise.
func tracerProvider(cfg *config.Config) trace.TracerProvider {
	if cfg.Tracing.Enabled {
		return otel.GetTracerProvider()
	}
	return noop.NewTracerProvider()
}
