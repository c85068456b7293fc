package memo

// Observable is the store side of a region: anything that broadcasts a
// notification after each mutation.
type Observable interface {
	Subscribe(fn func()) (unsubscribe func())
}

// Equaler is implemented by slices that define their own value equality.
type Equaler[T any] interface {
	Equal(other T) bool
}

// Recorder receives render and skip events. pkg/metrics implements it.
type Recorder interface {
	RegionRendered(region string)
	RegionSkipped(region string)
}

type options struct {
	name     string
	recorder Recorder
}

// Option configures a Region.
type Option func(*options)

// Named sets the region name used for metrics and logging.
func Named(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithRecorder reports every render and skip to r.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// Region is a value-equality-gated render cache of size one.
type Region[S Observable, V any, O any] struct {
	name     string
	recorder Recorder

	store  S
	derive func(S) V
	equal  func(a, b V) bool
	render func(V) O

	slice  V
	output O

	renders uint64
	skips   uint64

	hooks       []func(O)
	unsubscribe func()
	closed      bool
}

// WithViewModel creates a region whose slice type supports ==. Go's
// struct equality compares every field by value, which is exactly the slice
// equality a region needs.
func WithViewModel[S Observable, V comparable, O any](
	store S,
	derive func(S) V,
	render func(V) O,
	opts ...Option,
) *Region[S, V, O] {
	return WithViewModelFunc(store, derive, func(a, b V) bool { return a == b }, render, opts...)
}

// WithViewModelEqualer creates a region whose slice type defines Equal.
func WithViewModelEqualer[S Observable, V Equaler[V], O any](
	store S,
	derive func(S) V,
	render func(V) O,
	opts ...Option,
) *Region[S, V, O] {
	return WithViewModelFunc(store, derive, func(a, b V) bool { return a.Equal(b) }, render, opts...)
}

// WithViewModelFunc creates a region with an explicit equality function,
// for slices that hold slices, maps or other non-comparable fields.
//
// The first render happens before WithViewModelFunc returns; the region
// then subscribes to store.
func WithViewModelFunc[S Observable, V any, O any](
	store S,
	derive func(S) V,
	equal func(a, b V) bool,
	render func(V) O,
	opts ...Option,
) *Region[S, V, O] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Region[S, V, O]{
		name:     o.name,
		recorder: o.recorder,
		store:    store,
		derive:   derive,
		equal:    equal,
		render:   render,
	}

	r.commit(derive(store))
	r.unsubscribe = store.Subscribe(r.update)
	return r
}

// update is the store subscriber.
func (r *Region[S, V, O]) update() {
	if r.closed {
		return
	}

	next := r.derive(r.store)
	if r.equal(r.slice, next) {
		r.skips++
		if r.recorder != nil {
			r.recorder.RegionSkipped(r.name)
		}
		return
	}

	r.commit(next)
	for _, hook := range r.hooks {
		hook(r.output)
	}
}

func (r *Region[S, V, O]) commit(slice V) {
	r.slice = slice
	r.output = r.render(slice)
	r.renders++
	if r.recorder != nil {
		r.recorder.RegionRendered(r.name)
	}
}

// OnRender registers fn to run after every re-render triggered by a store
// notification. The initial render does not call it.
func (r *Region[S, V, O]) OnRender(fn func(O)) {
	if fn != nil {
		r.hooks = append(r.hooks, fn)
	}
}

// Output returns the output of the last render.
func (r *Region[S, V, O]) Output() O {
	return r.output
}

// Slice returns the slice the last render was produced from.
func (r *Region[S, V, O]) Slice() V {
	return r.slice
}

// Renders returns how many times the render function ran, including the
// initial render.
func (r *Region[S, V, O]) Renders() uint64 {
	return r.renders
}

// Skips returns how many notifications were discarded because the slice
// did not change.
func (r *Region[S, V, O]) Skips() uint64 {
	return r.skips
}

// Name returns the region name set with Named.
func (r *Region[S, V, O]) Name() string {
	return r.name
}

// Close unsubscribes the region from its store. The last output stays
// readable. Safe to call more than once.
func (r *Region[S, V, O]) Close() {
	if r.closed {
		return
	}
	r.closed = true
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.hooks = nil
}
