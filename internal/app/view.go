package app

import (
	"time"

	"github.com/vango-dev/memoview/internal/errors"
	"github.com/vango-dev/memoview/pkg/memo"
	. "github.com/vango-dev/memoview/pkg/vdom"
)

// Actions accepted by View.Handle.
const (
	ActionStart           = "start"
	ActionStop            = "stop"
	ActionTogglePaused    = "toggle-paused"
	ActionToggleVideoType = "toggle-video-type"
)

// TimeFormat is the layout of the "last update" stamp in region titles.
const TimeFormat = "15:04:05.000"

// Region names, also used as metric labels.
const (
	RegionIsPaused  = "isPausedView"
	RegionVideoType = "videoTypeView"
	RegionCombo     = "comboView"
	RegionClock     = "clockView"
	RegionCounter   = "counterView"
)

type comboState struct {
	IsPaused  bool
	VideoType VideoType
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithNow sets the clock read by region titles.
func WithNow(now func() time.Time) ViewOption {
	return func(v *View) {
		if now != nil {
			v.now = now
		}
	}
}

// WithRecorder reports region renders and skips to r.
func WithRecorder(r memo.Recorder) ViewOption {
	return func(v *View) {
		v.recorder = r
	}
}

// View renders a ViewModel. The controls section is rebuilt on every
// Render; the memoized section reuses each region's last output until its
// slice changes.
type View struct {
	vm       *ViewModel
	now      func() time.Time
	recorder memo.Recorder

	isPaused  *memo.Region[*ViewModel, bool, *VNode]
	videoType *memo.Region[*ViewModel, VideoType, *VNode]
	combo     *memo.Region[*ViewModel, comboState, *VNode]
	clock     *memo.Region[*ViewModel, int, *VNode]
	counter   *memo.Region[*ViewModel, int, *VNode]
}

// NewView builds the regions for vm and renders each once.
func NewView(vm *ViewModel, opts ...ViewOption) *View {
	v := &View{vm: vm, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}

	v.isPaused = memo.WithViewModel(vm,
		(*ViewModel).IsPaused,
		v.renderIsPaused,
		v.regionOptions(RegionIsPaused)...)

	v.videoType = memo.WithViewModel(vm,
		(*ViewModel).VideoType,
		v.renderVideoType,
		v.regionOptions(RegionVideoType)...)

	v.combo = memo.WithViewModel(vm,
		func(vm *ViewModel) comboState {
			return comboState{IsPaused: vm.IsPaused(), VideoType: vm.VideoType()}
		},
		v.renderCombo,
		v.regionOptions(RegionCombo)...)

	v.clock = memo.WithViewModel(vm,
		(*ViewModel).Counter,
		v.renderClock,
		v.regionOptions(RegionClock)...)

	v.counter = memo.WithViewModel(vm,
		(*ViewModel).Counter,
		v.renderCounter,
		v.regionOptions(RegionCounter)...)

	return v
}

func (v *View) regionOptions(name string) []memo.Option {
	opts := []memo.Option{memo.Named(name)}
	if v.recorder != nil {
		opts = append(opts, memo.WithRecorder(v.recorder))
	}
	return opts
}

// ViewModel returns the store the view renders.
func (v *View) ViewModel() *ViewModel {
	return v.vm
}

// Render returns the whole screen.
func (v *View) Render() *VNode {
	return Main(Class("screen"),
		H1(Text("Memoization Explorations")),
		Hr(),
		H2(Text("NOT Memoized")),
		Hr(),
		v.controls(),
		Hr(),
		Section(Class("memoized"),
			H2(Text("Memoized")),
			Hr(),
			v.isPaused.Output(),
			Hr(),
			v.videoType.Output(),
			Hr(),
			v.combo.Output(),
			Hr(),
			v.clock.Output(),
			Hr(),
			v.counter.Output(),
		),
	)
}

func (v *View) controls() *VNode {
	vm := v.vm

	timerButton := Button(Type("button"), Data("action", ActionStart), Text("Start"))
	if vm.IsTimerActive() {
		timerButton = Button(Type("button"), Data("action", ActionStop), Text("Stop"))
	}

	return Section(Class("region", "controls"),
		v.title("controlsView"),
		Div(Class("group"),
			timerButton,
			P(Textf("Clock: %d", vm.Counter())),
		),
		Div(Class("group"),
			Button(Type("button"), Data("action", ActionTogglePaused), Text("Toggle")),
			P(Textf("isPaused: %t", vm.IsPaused())),
		),
		Div(Class("group"),
			Button(Type("button"), Data("action", ActionToggleVideoType), Text("Toggle")),
			P(Textf("videoType: %s", vm.VideoType())),
		),
	)
}

// title is the region heading with the time it was rendered. The client
// flashes elements with the updated-at class whenever their text changes.
func (v *View) title(name string) *VNode {
	return Div(Class("title"),
		Span(Class("name"), Text(name)),
		Small(Class("updated-at"), Textf("(last update: %s)", v.now().Format(TimeFormat))),
	)
}

func (v *View) renderIsPaused(isPaused bool) *VNode {
	return Div(Class("region"), Data("region", RegionIsPaused),
		v.title(RegionIsPaused),
		P(Textf("isPaused (subscribed): %t", isPaused)),
	)
}

// renderVideoType reads isPaused straight from the store instead of from
// its slice, so that value only refreshes when videoType changes.
func (v *View) renderVideoType(videoType VideoType) *VNode {
	return Div(Class("region"), Data("region", RegionVideoType),
		v.title(RegionVideoType),
		P(Textf("videoType (subscribed): %s", videoType)),
		P(Textf("isPaused (lazy): %t", v.vm.IsPaused())),
		P(Class("caption"), Text(`This is considered "lazy" because it only picks up isPaused when subscribed state changes.`)),
	)
}

func (v *View) renderCombo(s comboState) *VNode {
	return Div(Class("region"), Data("region", RegionCombo),
		v.title(RegionCombo),
		P(Textf("isPaused (subscribed): %t", s.IsPaused)),
		P(Textf("videoType (subscribed): %s", s.VideoType)),
	)
}

func (v *View) renderClock(counter int) *VNode {
	return Div(Class("region"), Data("region", RegionClock),
		v.title(RegionClock),
		P(Textf("clock (subscribed): %d", counter)),
	)
}

func (v *View) renderCounter(counter int) *VNode {
	return Div(Class("region"), Data("region", RegionCounter),
		v.title(RegionCounter),
		P(Textf("counter: %d", counter)),
	)
}

// Handle applies a client action to the view model.
func (v *View) Handle(action string) error {
	switch action {
	case ActionStart:
		v.vm.StartTimer()
	case ActionStop:
		v.vm.StopTimer()
	case ActionTogglePaused:
		v.vm.TogglePaused()
	case ActionToggleVideoType:
		v.vm.ToggleVideoType()
	default:
		return errors.New("E302").WithDetailf("Action %q is not supported", action)
	}
	return nil
}

// RegionStats is the render and skip count of one region.
type RegionStats struct {
	Name    string
	Renders uint64
	Skips   uint64
}

// Stats returns render and skip counts for every region in screen order.
func (v *View) Stats() []RegionStats {
	return []RegionStats{
		{v.isPaused.Name(), v.isPaused.Renders(), v.isPaused.Skips()},
		{v.videoType.Name(), v.videoType.Renders(), v.videoType.Skips()},
		{v.combo.Name(), v.combo.Renders(), v.combo.Skips()},
		{v.clock.Name(), v.clock.Renders(), v.clock.Skips()},
		{v.counter.Name(), v.counter.Renders(), v.counter.Skips()},
	}
}

// OnRender registers fn to run whenever any region re-renders.
func (v *View) OnRender(fn func()) {
	if fn == nil {
		return
	}
	hook := func(*VNode) { fn() }
	v.isPaused.OnRender(hook)
	v.videoType.OnRender(hook)
	v.combo.OnRender(hook)
	v.clock.OnRender(hook)
	v.counter.OnRender(hook)
}

// Close unsubscribes every region from the view model.
func (v *View) Close() {
	v.isPaused.Close()
	v.videoType.Close()
	v.combo.Close()
	v.clock.Close()
	v.counter.Close()
}
