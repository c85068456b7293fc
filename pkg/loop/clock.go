package loop

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source used by a Loop.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Every calls fn once per period until the returned stop function is
	// called. fn runs on a clock-owned goroutine, not on the loop.
	Every(period time.Duration, fn func()) (stop func())
}

// RealClock is a Clock backed by the time package.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// Every implements Clock using a time.Ticker.
func (RealClock) Every(period time.Duration, fn func()) func() {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

// ManualClock is a Clock whose time only moves when Advance is called.
// Tick callbacks run synchronously inside Advance, in time order; ties are
// broken by registration order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	tickers []*manualTicker
}

type manualTicker struct {
	seq     uint64
	period  time.Duration
	next    time.Time
	fn      func()
	stopped bool
}

// NewManualClock returns a ManualClock set to start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Every implements Clock.
func (c *ManualClock) Every(period time.Duration, fn func()) func() {
	if period <= 0 {
		panic("loop: non-positive period")
	}

	c.mu.Lock()
	c.seq++
	t := &manualTicker{
		seq:    c.seq,
		period: period,
		next:   c.now.Add(period),
		fn:     fn,
	}
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		t.stopped = true
		c.removeStopped()
	}
}

// Tickers returns the number of registered, unstopped tickers.
func (c *ManualClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Advance moves time forward by d, firing every tick that falls due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.nextDue(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.next
		t.next = t.next.Add(t.period)
		fn := t.fn
		c.mu.Unlock()

		// Outside the lock: fn may stop its own ticker.
		fn()
	}
}

// nextDue returns the earliest ticker due at or before target.
// Caller must hold c.mu.
func (c *ManualClock) nextDue(target time.Time) *manualTicker {
	due := make([]*manualTicker, 0, len(c.tickers))
	for _, t := range c.tickers {
		if !t.stopped && !t.next.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].seq < due[j].seq
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}

// removeStopped drops stopped tickers. Caller must hold c.mu.
func (c *ManualClock) removeStopped() {
	kept := c.tickers[:0]
	for _, t := range c.tickers {
		if !t.stopped {
			kept = append(kept, t)
		}
	}
	c.tickers = kept
}

var (
	_ Clock = RealClock{}
	_ Clock = (*ManualClock)(nil)
)
