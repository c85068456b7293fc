package app

import (
	"fmt"
	"time"

	"github.com/vango-dev/memoview/pkg/loop"
	"github.com/vango-dev/memoview/pkg/store"
)

// DefaultInterval is the period of the counter timer.
const DefaultInterval = time.Second

// VideoType selects how the sample media would be played.
type VideoType int

const (
	VideoTypeVideo VideoType = iota
	VideoTypeGIF
)

func (v VideoType) String() string {
	switch v {
	case VideoTypeVideo:
		return "video"
	case VideoTypeGIF:
		return "gif"
	default:
		return fmt.Sprintf("VideoType(%d)", int(v))
	}
}

// Toggled returns the other video type.
func (v VideoType) Toggled() VideoType {
	if v == VideoTypeGIF {
		return VideoTypeVideo
	}
	return VideoTypeGIF
}

// Scheduler creates recurring timers whose callbacks run on the UI loop.
// *loop.Loop implements it.
type Scheduler interface {
	Every(period time.Duration, fn func()) *loop.Timer
}

// ViewModelOption configures a ViewModel.
type ViewModelOption func(*ViewModel)

// WithInterval sets the counter timer period. Non-positive values keep the
// default.
func WithInterval(d time.Duration) ViewModelOption {
	return func(vm *ViewModel) {
		if d > 0 {
			vm.interval = d
		}
	}
}

// WithTickHook registers fn to run after every timer increment.
func WithTickHook(fn func()) ViewModelOption {
	return func(vm *ViewModel) {
		vm.onTick = fn
	}
}

// ViewModel is the observable state of the sample screen. Each mutator
// notifies subscribers exactly once. After Close, mutators are dropped.
type ViewModel struct {
	store.Observable

	scheduler Scheduler
	interval  time.Duration
	onTick    func()

	counter   int
	isPaused  bool
	videoType VideoType
	timer     *loop.Timer
}

// NewViewModel returns a paused ViewModel showing video, with no timer.
func NewViewModel(scheduler Scheduler, opts ...ViewModelOption) *ViewModel {
	vm := &ViewModel{
		scheduler: scheduler,
		interval:  DefaultInterval,
		isPaused:  true,
		videoType: VideoTypeVideo,
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

func (vm *ViewModel) Counter() int            { return vm.counter }
func (vm *ViewModel) IsPaused() bool          { return vm.isPaused }
func (vm *ViewModel) VideoType() VideoType    { return vm.videoType }
func (vm *ViewModel) Interval() time.Duration { return vm.interval }
func (vm *ViewModel) IsTimerActive() bool     { return vm.timer.Active() }

// SetPaused sets isPaused. It notifies even when the value is unchanged;
// regions decide for themselves whether that matters.
func (vm *ViewModel) SetPaused(paused bool) {
	if vm.Closed() {
		return
	}
	vm.isPaused = paused
	vm.Notify()
}

func (vm *ViewModel) TogglePaused() {
	vm.SetPaused(!vm.isPaused)
}

// SetVideoType sets the video type.
func (vm *ViewModel) SetVideoType(v VideoType) {
	if vm.Closed() {
		return
	}
	vm.videoType = v
	vm.Notify()
}

func (vm *ViewModel) ToggleVideoType() {
	vm.SetVideoType(vm.videoType.Toggled())
}

// Increment adds one to the counter.
func (vm *ViewModel) Increment() {
	if vm.Closed() {
		return
	}
	vm.counter++
	vm.Notify()
}

// StartTimer (re)starts the counter timer. A running timer is canceled
// first, so there is never more than one.
func (vm *ViewModel) StartTimer() {
	if vm.Closed() {
		return
	}
	vm.timer.Cancel()
	vm.timer = vm.scheduler.Every(vm.interval, vm.tick)
	vm.Notify()
}

// StopTimer cancels the counter timer. The counter keeps its value.
// Stopping a stopped timer does nothing.
func (vm *ViewModel) StopTimer() {
	if vm.Closed() || vm.timer == nil {
		return
	}
	vm.timer.Cancel()
	vm.timer = nil
	vm.Notify()
}

func (vm *ViewModel) tick() {
	if vm.Closed() {
		return
	}
	vm.counter++
	if vm.onTick != nil {
		vm.onTick()
	}
	vm.Notify()
}

// Close cancels the timer and drops all subscribers. It does not notify.
func (vm *ViewModel) Close() {
	vm.timer.Cancel()
	vm.timer = nil
	vm.Observable.Close()
}

// Equal reports whether vm and other hold the same observable state.
func (vm *ViewModel) Equal(other *ViewModel) bool {
	if vm == nil || other == nil {
		return vm == other
	}
	return vm.counter == other.counter &&
		vm.isPaused == other.isPaused &&
		vm.IsTimerActive() == other.IsTimerActive() &&
		vm.videoType == other.videoType
}

func (vm *ViewModel) String() string {
	return fmt.Sprintf("counter=%d paused=%t video=%s timer=%t",
		vm.counter, vm.isPaused, vm.videoType, vm.IsTimerActive())
}
