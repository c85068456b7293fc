package loop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a handle to a scheduled callback created by Every or After.
// A nil *Timer is valid and behaves like a canceled timer.
type Timer struct {
	loop     *Loop
	canceled atomic.Bool

	// mu guards stop, which is set after the clock registration returns.
	mu   sync.Mutex
	stop func()
}

// Every runs fn on the loop once per period until the returned Timer is
// canceled. A tick that is already queued when Cancel runs on the loop is
// skipped, so no callback runs after Cancel returns on the loop.
func (l *Loop) Every(period time.Duration, fn func()) *Timer {
	t := &Timer{loop: l}
	l.schedule(t, period, fn)
	return t
}

// After runs fn on the loop once, after d.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	t := &Timer{loop: l}
	l.schedule(t, d, func() {
		t.Cancel()
		fn()
	})
	return t
}

func (l *Loop) schedule(t *Timer, period time.Duration, fn func()) {
	if l.closed.Load() {
		t.canceled.Store(true)
		return
	}

	l.trackTimer(t)
	t.setStop(l.clock.Every(period, func() {
		if t.canceled.Load() {
			return
		}
		l.Dispatch(func() {
			if t.canceled.Load() {
				return
			}
			fn()
		})
	}))
}

func (t *Timer) setStop(stop func()) {
	t.mu.Lock()
	if t.canceled.Load() {
		t.mu.Unlock()
		stop()
		return
	}
	t.stop = stop
	t.mu.Unlock()
}

// Cancel stops the timer. Calling Cancel more than once, or on a nil
// Timer, is a no-op.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}

	t.mu.Lock()
	t.canceled.Store(true)
	stop := t.stop
	t.stop = nil
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
	if t.loop != nil {
		t.loop.untrackTimer(t)
	}
}

// Active reports whether the timer has not been canceled.
func (t *Timer) Active() bool {
	return t != nil && !t.canceled.Load()
}
