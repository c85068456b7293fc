package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/vango-dev/memoview/internal/app"
	"github.com/vango-dev/memoview/pkg/loop"
	"github.com/vango-dev/memoview/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

var epoch = time.Date(2023, 8, 25, 9, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	clock    *loop.ManualClock
	loop     *loop.Loop
	vm       *app.ViewModel
	recorder *metrics.Recorder
	srv      *Server
	ts       *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := loop.NewManualClock(epoch)
	l := loop.New(loop.WithClock(clock), loop.WithLogger(quietLogger()))
	exited := make(chan error, 1)
	go func() { exited <- l.Run(context.Background()) }()
	t.Cleanup(func() {
		l.Close()
		<-exited
	})

	vm := app.NewViewModel(l)
	rec := metrics.New()
	srv, err := New(Config{
		Loop:  l,
		Store: vm,
		NewScreen: func() Screen {
			return app.NewView(vm,
				app.WithNow(func() time.Time { return epoch }),
				app.WithRecorder(rec))
		},
		Recorder:    rec,
		MetricsPath: "/metrics",
		Logger:      quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})

	return &fixture{clock: clock, loop: l, vm: vm, recorder: rec, srv: srv, ts: ts}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + SocketPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *fixture) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func readFrame(t *testing.T, conn *websocket.Conn) ServerFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame ServerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return frame
}

func sendAction(t *testing.T, conn *websocket.Conn, action string) {
	t.Helper()
	if err := conn.WriteJSON(ClientFrame{Action: action}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func patchValues(frame ServerFrame, op string) []string {
	var out []string
	for _, p := range frame.Patches {
		if p.Op == op {
			out = append(out, p.Value)
		}
	}
	return out
}

// waitFor polls cond until it holds or a few seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New(Config{}) should fail")
	}
}

func TestPage(t *testing.T) {
	f := newFixture(t)

	status, body := f.get(t, "/")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	for _, want := range []string{
		"<title>Memoization Explorations</title>",
		`<div id="app">`,
		"isPaused (subscribed): true",
		`var MEMOVIEW_SOCKET="/ws";`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	// The page's screen is released after rendering.
	if n := f.vm.Subscribers(); n != 1 {
		t.Errorf("subscribers = %d, want 1 (metrics only)", n)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	status, body := f.get(t, "/healthz")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "ok" {
		t.Errorf("health = %v", got)
	}
}

func TestInitialFrame(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	frame := readFrame(t, conn)
	if frame.Seq != 1 {
		t.Errorf("seq = %d, want 1", frame.Seq)
	}
	if !strings.HasPrefix(frame.HTML, `<main class="screen" data-hid="h1">`) {
		t.Errorf("html = %.80s", frame.HTML)
	}
	if len(frame.Patches) != 0 {
		t.Errorf("initial frame carries %d patches", len(frame.Patches))
	}
	waitFor(t, "session registered", func() bool { return f.srv.Sessions() == 1 })
}

func TestTogglePausedPatches(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readFrame(t, conn)

	sendAction(t, conn, app.ActionTogglePaused)
	frame := readFrame(t, conn)

	if frame.Seq != 2 {
		t.Errorf("seq = %d, want 2", frame.Seq)
	}
	want := []string{"isPaused: false", "isPaused (subscribed): false", "isPaused (subscribed): false"}
	if diff := cmp.Diff(want, patchValues(frame, "SetText")); diff != "" {
		t.Errorf("SetText values (-want +got):\n%s", diff)
	}
	if len(frame.Patches) != len(want) {
		t.Errorf("patches = %+v", frame.Patches)
	}
}

func TestTimerPushesPatches(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readFrame(t, conn)

	sendAction(t, conn, app.ActionStart)
	frame := readFrame(t, conn)
	if diff := cmp.Diff([]string{"stop"}, patchValues(frame, "SetAttr")); diff != "" {
		t.Errorf("SetAttr values (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Stop"}, patchValues(frame, "SetText")); diff != "" {
		t.Errorf("SetText values (-want +got):\n%s", diff)
	}

	f.clock.Advance(app.DefaultInterval)
	frame = readFrame(t, conn)
	want := []string{"Clock: 1", "clock (subscribed): 1", "counter: 1"}
	if diff := cmp.Diff(want, patchValues(frame, "SetText")); diff != "" {
		t.Errorf("tick SetText values (-want +got):\n%s", diff)
	}

	sendAction(t, conn, app.ActionStop)
	readFrame(t, conn)
	f.clock.Advance(3 * app.DefaultInterval)

	var counter int
	if err := f.loop.Do(context.Background(), func() { counter = f.vm.Counter() }); err != nil {
		t.Fatal(err)
	}
	if counter != 1 {
		t.Errorf("counter = %d, want 1", counter)
	}
}

func TestBroadcastToAllSessions(t *testing.T) {
	f := newFixture(t)
	a := f.dial(t)
	b := f.dial(t)
	readFrame(t, a)
	readFrame(t, b)

	sendAction(t, a, app.ActionToggleVideoType)

	for name, conn := range map[string]*websocket.Conn{"a": a, "b": b} {
		frame := readFrame(t, conn)
		values := patchValues(frame, "SetText")
		if len(values) == 0 || values[0] != "videoType: gif" {
			t.Errorf("session %s patches = %v", name, values)
		}
	}
}

func TestUnknownAction(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readFrame(t, conn)

	sendAction(t, conn, "jump")
	frame := readFrame(t, conn)
	if frame.Error == nil || frame.Error.Code != "E302" {
		t.Errorf("frame = %+v, want E302 error", frame)
	}
}

func TestInvalidFrame(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readFrame(t, conn)

	for _, msg := range []string{"not json", `{"other":1}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatal(err)
		}
		frame := readFrame(t, conn)
		if frame.Error == nil || frame.Error.Code != "E301" {
			t.Errorf("%q: frame = %+v, want E301 error", msg, frame)
		}
	}
}

func TestDisconnectReleasesScreen(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readFrame(t, conn)

	// metrics + five regions + the session itself
	waitFor(t, "session subscribed", func() bool { return f.vm.Subscribers() == 7 })

	conn.Close()

	waitFor(t, "session removed", func() bool { return f.srv.Sessions() == 0 })
	waitFor(t, "screen released", func() bool { return f.vm.Subscribers() == 1 })
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readFrame(t, conn)
	sendAction(t, conn, app.ActionTogglePaused)
	readFrame(t, conn)

	status, body := f.get(t, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	for _, want := range []string{
		"memoview_active_sessions 1",
		`memoview_region_renders_total{region="isPausedView"} 2`,
		`memoview_region_skips_total{region="clockView"} 1`,
		"memoview_store_notifications_total 1",
		"memoview_patches_sent_total 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestCrossOriginRejected(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + SocketPath
	header := http.Header{"Origin": []string{"http://evil.example"}}

	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("cross-origin dial succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("resp = %v, want 403", resp)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- f.srv.Serve(ctx, ln) }()

	waitFor(t, "server up", func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListenAndServeBadAddress(t *testing.T) {
	l := loop.New(loop.WithLogger(quietLogger()))
	defer l.Close()
	vm := app.NewViewModel(l)
	srv, err := New(Config{
		Loop:      l,
		Store:     vm,
		NewScreen: func() Screen { return app.NewView(vm) },
		Address:   "256.0.0.1:bad",
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = srv.ListenAndServe(context.Background())
	if err == nil || !strings.Contains(err.Error(), "E201") {
		t.Errorf("ListenAndServe = %v, want E201", err)
	}
}
