package server

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-dev/memoview/internal/app"
	"github.com/vango-dev/memoview/pkg/loop"
	"github.com/vango-dev/memoview/pkg/metrics"
)

// busyFixture is a mounted session on a loop whose queue holds a single
// callback, so a test can fill the queue from inside a running callback.
type busyFixture struct {
	loop     *loop.Loop
	vm       *app.ViewModel
	recorder *metrics.Recorder
	sess     *Session
}

func newBusyFixture(t *testing.T) *busyFixture {
	t.Helper()

	l := loop.New(loop.WithQueueSize(1), loop.WithLogger(quietLogger()))
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
			return app.NewView(vm, app.WithNow(func() time.Time { return epoch }))
		},
		Recorder: rec,
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	sess := newSession(srv, nil)
	f := &busyFixture{loop: l, vm: vm, recorder: rec, sess: sess}
	f.do(t, sess.mount)
	if frame := f.frame(t); frame.HTML == "" {
		t.Fatalf("initial frame has no html: %+v", frame)
	}
	return f
}

func (f *busyFixture) do(t *testing.T, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.loop.Do(ctx, fn); err != nil {
		t.Fatalf("Do: %v", err)
	}
}

// fillQueue occupies the only queue slot. Call it on the loop.
func (f *busyFixture) fillQueue(t *testing.T) {
	if !f.loop.Dispatch(func() {}) {
		t.Error("queue was not empty")
	}
}

func (f *busyFixture) frame(t *testing.T) ServerFrame {
	t.Helper()
	select {
	case data := <-f.sess.send:
		var frame ServerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		return frame
	case <-time.After(5 * time.Second):
		t.Fatal("no frame queued")
		return ServerFrame{}
	}
}

func TestFlushWaitsForQueueSpace(t *testing.T) {
	f := newBusyFixture(t)

	f.do(t, func() {
		f.fillQueue(t)
		f.vm.Increment()
	})

	frame := f.frame(t)
	if frame.Seq != 2 {
		t.Errorf("seq = %d, want 2", frame.Seq)
	}
	values := patchValues(frame, "SetText")
	if !containsValue(values, "counter: 1") {
		t.Errorf("SetText values = %q, want counter: 1 among them", values)
	}

	expected := `
# HELP memoview_deferred_flushes_total Session re-renders that found the loop queue full and waited for space
# TYPE memoview_deferred_flushes_total counter
memoview_deferred_flushes_total 1
`
	if err := testutil.GatherAndCompare(f.recorder.Gatherer(), strings.NewReader(expected), "memoview_deferred_flushes_total"); err != nil {
		t.Error(err)
	}

	// The session keeps updating once the queue drains.
	f.do(t, f.vm.Increment)
	if values := patchValues(f.frame(t), "SetText"); !containsValue(values, "counter: 2") {
		t.Errorf("SetText values = %q, want counter: 2 among them", values)
	}

	f.do(t, f.sess.teardown)
}

func TestReleaseWaitsForQueueSpace(t *testing.T) {
	f := newBusyFixture(t)

	// Recorder, five regions and the session.
	if got := f.vm.Subscribers(); got != 7 {
		t.Fatalf("subscribers = %d, want 7", got)
	}

	f.do(t, func() {
		f.fillQueue(t)
		f.sess.release()
	})

	waitFor(t, "screen released", func() bool { return f.vm.Subscribers() == 1 })
}

func containsValue(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
