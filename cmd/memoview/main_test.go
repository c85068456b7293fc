package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/memoview/internal/app"
	"github.com/vango-dev/memoview/internal/config"
	"github.com/vango-dev/memoview/internal/errors"
	"github.com/vango-dev/memoview/pkg/loop"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunDemo(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := loop.NewManualClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	started := make(chan struct{})
	var out bytes.Buffer

	type result struct {
		stats []app.RegionStats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := runDemo(ctx, demoOptions{
			ticks:    3,
			interval: time.Second,
			clock:    clock,
			logger:   discardLogger(),
			out:      &out,
			started:  func() { close(started) },
		})
		done <- result{stats, err}
	}()

	select {
	case <-started:
	case <-ctx.Done():
		t.Fatal("timer never started")
	}
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
	}

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		t.Fatal("demo did not finish")
	}
	if res.err != nil {
		t.Fatalf("runDemo: %v", res.err)
	}

	// 8 notifications: start, 3 ticks, then the 4 script steps.
	want := []app.RegionStats{
		{Name: app.RegionIsPaused, Renders: 2, Skips: 7},
		{Name: app.RegionVideoType, Renders: 2, Skips: 7},
		{Name: app.RegionCombo, Renders: 3, Skips: 6},
		{Name: app.RegionClock, Renders: 4, Skips: 5},
		{Name: app.RegionCounter, Renders: 4, Skips: 5},
	}
	if diff := cmp.Diff(want, res.stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	table := out.String()
	if !strings.HasPrefix(table, "REGION") {
		t.Errorf("table missing header:\n%s", table)
	}
	for _, s := range want {
		if !strings.Contains(table, s.Name) {
			t.Errorf("table missing %s:\n%s", s.Name, table)
		}
	}
	if clock.Tickers() != 0 {
		t.Errorf("tickers = %d after demo, want 0", clock.Tickers())
	}
}

func TestRunDemoValidatesOptions(t *testing.T) {
	ctx := context.Background()
	opts := demoOptions{
		ticks:    0,
		interval: time.Second,
		clock:    loop.RealClock{},
		logger:   discardLogger(),
		out:      io.Discard,
	}
	if _, err := runDemo(ctx, opts); err == nil {
		t.Error("expected error for zero ticks")
	}

	opts.ticks = 1
	opts.interval = 0
	_, err := runDemo(ctx, opts)
	if !errors.HasCode(err, "E104") {
		t.Errorf("err = %v, want E104", err)
	}
}

func TestVersionShort(t *testing.T) {
	var buf bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--short"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != version+"\n" {
		t.Errorf("output = %q, want %q", buf.String(), version+"\n")
	}
}

func TestVersionLong(t *testing.T) {
	var buf bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Version:", "Commit:", "Go version:", "OS/Arch:"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	file := config.New()
	file.Server.Port = 4000
	file.Timer.Interval = "2s"
	if err := file.SaveTo(path); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(serveFlags{
		configPath: path,
		host:       "0.0.0.0",
		interval:   "250ms",
		logFormat:  "json",
		noMetrics:  true,
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d, want file value 4000", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want flag value", cfg.Server.Host)
	}
	if d, _ := cfg.TimerInterval(); d != 250*time.Millisecond {
		t.Errorf("interval = %s, want 250ms", d)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics still enabled")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %q", cfg.Log.Format)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(serveFlags{configPath: filepath.Join(t.TempDir(), "missing.json")})
	if !errors.HasCode(err, "E101") {
		t.Errorf("missing file: err = %v, want E101", err)
	}

	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	if err := config.New().SaveTo(path); err != nil {
		t.Fatal(err)
	}
	_, err = loadConfig(serveFlags{configPath: path, port: 70000})
	if !errors.HasCode(err, "E103") {
		t.Errorf("bad port: err = %v, want E103", err)
	}
	_, err = loadConfig(serveFlags{configPath: path, interval: "soon"})
	if !errors.HasCode(err, "E104") {
		t.Errorf("bad interval: err = %v, want E104", err)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	cfg := config.New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := newLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "region", app.RegionClock)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1:\n%s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["msg"] != "shown" || entry["region"] != app.RegionClock {
		t.Errorf("entry = %v", entry)
	}
}

func TestTracerProvider(t *testing.T) {
	cfg := config.New()
	if tracerProvider(cfg) == nil {
		t.Fatal("nil provider with tracing disabled")
	}
	cfg.Tracing.Enabled = true
	if tracerProvider(cfg) == nil {
		t.Fatal("nil provider with tracing enabled")
	}
}
