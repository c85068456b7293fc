package loop

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultQueueSize is the dispatch queue capacity when none is configured.
	DefaultQueueSize = 256

	defaultTracerName = "memoview/loop"
)

var (
	// ErrClosed is returned when waiting on a loop that has been closed.
	ErrClosed = errors.New("loop: closed")

	// ErrRunning is returned by Run when the loop is already running.
	ErrRunning = errors.New("loop: already running")
)

// Observer receives loop measurements. pkg/metrics implements it.
type Observer interface {
	ObserveDispatch(d time.Duration)
	ObserveDrop()
}

// Loop executes dispatched callbacks one at a time on the goroutine that
// called Run.
type Loop struct {
	dispatchCh chan func()
	done       chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool
	running    atomic.Bool

	clock    Clock
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer

	timersMu sync.Mutex
	timers   map[*Timer]struct{}
}

type config struct {
	queueSize int
	clock     Clock
	logger    *slog.Logger
	tracer    trace.Tracer
	observer  Observer
}

// Option configures a Loop.
type Option func(*config)

// WithQueueSize sets the dispatch queue capacity.
func WithQueueSize(n int) Option {
	return func(c *config) {
		c.queueSize = n
	}
}

// WithClock sets the clock used for timers.
func WithClock(clock Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithTracer sets the tracer used to create one span per callback.
// Defaults to the global OpenTelemetry provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *config) {
		c.tracer = tracer
	}
}

// WithObserver sets a measurement sink.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// New creates a Loop. The loop does nothing until Run is called.
func New(opts ...Option) *Loop {
	cfg := config{
		queueSize: DefaultQueueSize,
		clock:     RealClock{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.queueSize <= 0 {
		cfg.queueSize = DefaultQueueSize
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(defaultTracerName)
	}

	return &Loop{
		dispatchCh: make(chan func(), cfg.queueSize),
		done:       make(chan struct{}),
		clock:      cfg.clock,
		logger:     cfg.logger,
		tracer:     cfg.tracer,
		observer:   cfg.observer,
		timers:     make(map[*Timer]struct{}),
	}
}

// Run processes dispatched callbacks until ctx is canceled or Close is
// called. It returns ctx.Err() on cancellation and nil after Close.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)

	for {
		select {
		case fn := <-l.dispatchCh:
			l.execute(fn)

		case <-ctx.Done():
			return ctx.Err()

		case <-l.done:
			return nil
		}
	}
}

// Dispatch queues fn to run on the loop. It never blocks: when the loop is
// closed or the queue is full the callback is dropped and false is returned.
func (l *Loop) Dispatch(fn func()) bool {
	if fn == nil || l.closed.Load() {
		return false
	}
	select {
	case l.dispatchCh <- fn:
		return true
	case <-l.done:
		return false
	default:
		l.logger.Warn("dispatch queue full, discarding callback")
		if l.observer != nil {
			l.observer.ObserveDrop()
		}
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
// Unlike Dispatch it waits for queue space instead of dropping.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	wrapped := func() {
		defer close(ran)
		fn()
	}

	select {
	case l.dispatchCh <- wrapped:
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ran:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every callback dispatched before the call has run.
func (l *Loop) Flush(ctx context.Context) error {
	return l.Do(ctx, func() {})
}

// Clock returns the loop's clock.
func (l *Loop) Clock() Clock {
	return l.clock
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Close stops the loop and cancels every timer it created. Queued callbacks
// that have not started are discarded. Safe to call more than once.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)

		l.timersMu.Lock()
		timers := make([]*Timer, 0, len(l.timers))
		for t := range l.timers {
			timers = append(timers, t)
		}
		l.timersMu.Unlock()

		for _, t := range timers {
			t.Cancel()
		}
	})
}

// execute runs one callback with panic recovery and a trace span.
func (l *Loop) execute(fn func()) {
	start := time.Now()
	_, span := l.tracer.Start(context.Background(), "memoview.dispatch",
		trace.WithAttributes(attribute.Int("memoview.queue_depth", len(l.dispatchCh))),
	)

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(stack))
			span.SetStatus(codes.Error, "panic")
		}
		span.End()
		if l.observer != nil {
			l.observer.ObserveDispatch(time.Since(start))
		}
	}()

	fn()
}

func (l *Loop) trackTimer(t *Timer) {
	l.timersMu.Lock()
	l.timers[t] = struct{}{}
	l.timersMu.Unlock()
}

func (l *Loop) untrackTimer(t *Timer) {
	l.timersMu.Lock()
	delete(l.timers, t)
	l.timersMu.Unlock()
}
