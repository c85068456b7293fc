package memo

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/memoview/pkg/store"
)

// testStore has two tracked fields and one field no slice carries.
type testStore struct {
	store.Observable
	a, b  int
	extra string
}

func (s *testStore) SetA(v int)        { s.a = v; s.Notify() }
func (s *testStore) SetB(v int)        { s.b = v; s.Notify() }
func (s *testStore) SetExtra(v string) { s.extra = v; s.Notify() }
func (s *testStore) Touch()            { s.Notify() }

type aSlice struct{ A int }

type abSlice struct{ A, B int }

type listSlice struct{ Items []int }

func (s listSlice) Equal(o listSlice) bool {
	return slices.Equal(s.Items, o.Items)
}

func deriveA(s *testStore) aSlice {
	return aSlice{A: s.a}
}

func deriveAB(s *testStore) abSlice {
	return abSlice{A: s.a, B: s.b}
}

func renderA(aSlice) string   { return "a" }
func renderAB(abSlice) string { return "ab" }

func TestInitialRender(t *testing.T) {
	s := &testStore{a: 7}

	var got []aSlice
	r := WithViewModel(s, deriveA, func(v aSlice) string {
		got = append(got, v)
		return "rendered"
	})

	if diff := cmp.Diff([]aSlice{{A: 7}}, got); diff != "" {
		t.Errorf("initial render mismatch (-want +got):\n%s", diff)
	}
	if r.Output() != "rendered" {
		t.Errorf("Output = %q", r.Output())
	}
	if r.Renders() != 1 || r.Skips() != 0 {
		t.Errorf("renders=%d skips=%d, want 1/0", r.Renders(), r.Skips())
	}
	if s.Subscribers() != 1 {
		t.Errorf("Subscribers = %d, want 1", s.Subscribers())
	}
}

func TestNoRerenderWhenSliceUnchanged(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 50; run++ {
		s := &testStore{a: 3}
		calls := 0
		r := WithViewModel(s, deriveA, func(aSlice) string {
			calls++
			return ""
		})

		steps := rng.Intn(40)
		for i := 0; i < steps; i++ {
			switch rng.Intn(4) {
			case 0:
				s.SetB(rng.Int())
			case 1:
				s.SetExtra("x")
			case 2:
				s.SetA(3) // same value
			default:
				s.Touch()
			}
		}

		if calls != 1 {
			t.Fatalf("run %d: render called %d times over %d no-op mutations, want 1", run, calls, steps)
		}
		if r.Skips() != uint64(steps) {
			t.Fatalf("run %d: skips = %d, want %d", run, r.Skips(), steps)
		}
	}
}

func TestRerenderOncePerSliceChange(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	s := &testStore{}

	var got []abSlice
	r := WithViewModel(s, deriveAB, func(v abSlice) string {
		got = append(got, v)
		return ""
	})
	got = got[:0]

	var want []abSlice
	for i := 0; i < 200; i++ {
		before := deriveAB(s)
		if rng.Intn(2) == 0 {
			s.SetA(rng.Intn(3))
		} else {
			s.SetB(rng.Intn(3))
		}
		after := deriveAB(s)
		if after != before {
			want = append(want, after)
		}
		if r.Slice() != after {
			t.Fatalf("step %d: Slice = %+v, want %+v", i, r.Slice(), after)
		}
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("renders mismatch (-want +got):\n%s", diff)
	}
}

func TestSliceMatchesDerivationAfterMutation(t *testing.T) {
	s := &testStore{}

	var rendered []abSlice
	WithViewModel(s, deriveAB, func(v abSlice) string {
		rendered = append(rendered, v)
		return ""
	})

	s.SetA(1)
	s.SetB(2)
	s.SetA(5)

	want := []abSlice{{0, 0}, {1, 0}, {1, 2}, {5, 2}}
	if diff := cmp.Diff(want, rendered); diff != "" {
		t.Errorf("rendered slices mismatch (-want +got):\n%s", diff)
	}
}

func TestLazyReadIsNotTracked(t *testing.T) {
	s := &testStore{extra: "first"}

	calls := 0
	r := WithViewModel(s, deriveA, func(v aSlice) string {
		calls++
		// Reads s.extra directly: not part of the slice.
		return s.extra
	})

	s.SetExtra("second")
	if calls != 1 {
		t.Errorf("render called %d times after untracked change, want 1", calls)
	}
	if r.Output() != "first" {
		t.Errorf("Output = %q, want stale %q", r.Output(), "first")
	}

	// A tracked change picks up the stale value.
	s.SetA(1)
	if r.Output() != "second" {
		t.Errorf("Output = %q after tracked change, want %q", r.Output(), "second")
	}
}

func TestSliceEqualityIgnoresOtherFields(t *testing.T) {
	tests := []struct {
		name string
		x, y *testStore
	}{
		{"differs in b", &testStore{a: 1, b: 1}, &testStore{a: 1, b: 9}},
		{"differs in extra", &testStore{a: 1, extra: "p"}, &testStore{a: 1, extra: "q"}},
		{"differs in both", &testStore{a: 2, b: 0, extra: ""}, &testStore{a: 2, b: 4, extra: "z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if deriveA(tt.x) != deriveA(tt.y) {
				t.Errorf("slices differ: %+v vs %+v", deriveA(tt.x), deriveA(tt.y))
			}
		})
	}
}

func TestDerivationDeterministic(t *testing.T) {
	s := &testStore{a: 4, b: 5}
	if deriveAB(s) != deriveAB(s) {
		t.Error("two derivations without mutation differ")
	}
}

func TestEqualerRegion(t *testing.T) {
	items := []int{1, 2}
	s := &testStore{}

	calls := 0
	WithViewModelEqualer(s, func(*testStore) listSlice {
		return listSlice{Items: slices.Clone(items)}
	}, func(listSlice) string {
		calls++
		return ""
	})

	s.Touch()
	if calls != 1 {
		t.Errorf("calls = %d after equal list, want 1", calls)
	}

	items = append(items, 3)
	s.Touch()
	if calls != 2 {
		t.Errorf("calls = %d after list change, want 2", calls)
	}
}

func TestFuncRegion(t *testing.T) {
	s := &testStore{}

	calls := 0
	WithViewModelFunc(s,
		func(s *testStore) map[string]int { return map[string]int{"a": s.a} },
		func(x, y map[string]int) bool { return x["a"] == y["a"] },
		func(map[string]int) int { calls++; return calls },
	)

	s.SetB(1)
	s.SetA(1)
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestOnRenderHooks(t *testing.T) {
	s := &testStore{}
	r := WithViewModel(s, deriveA, func(v aSlice) int { return v.A * 10 })

	var outputs []int
	r.OnRender(func(o int) { outputs = append(outputs, o) })
	r.OnRender(nil)

	s.SetB(1)
	s.SetA(1)
	s.SetA(2)

	if diff := cmp.Diff([]int{10, 20}, outputs); diff != "" {
		t.Errorf("hook outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	s := &testStore{}
	r := WithViewModel(s, deriveA, renderA)

	r.Close()
	r.Close()
	s.SetA(1)

	if r.Renders() != 1 {
		t.Errorf("Renders = %d after Close, want 1", r.Renders())
	}
	if s.Subscribers() != 0 {
		t.Errorf("Subscribers = %d after Close, want 0", s.Subscribers())
	}
	if r.Output() != "a" {
		t.Errorf("Output = %q after Close", r.Output())
	}
}

func TestRegionsAreIndependent(t *testing.T) {
	s := &testStore{}
	ra := WithViewModel(s, deriveA, renderA, Named("a"))
	rab := WithViewModel(s, deriveAB, renderAB, Named("ab"))

	s.SetB(1)

	if ra.Renders() != 1 || ra.Skips() != 1 {
		t.Errorf("a: renders=%d skips=%d, want 1/1", ra.Renders(), ra.Skips())
	}
	if rab.Renders() != 2 || rab.Skips() != 0 {
		t.Errorf("ab: renders=%d skips=%d, want 2/0", rab.Renders(), rab.Skips())
	}
	if ra.Name() != "a" || rab.Name() != "ab" {
		t.Errorf("names = %q, %q", ra.Name(), rab.Name())
	}
}

type fakeRecorder struct {
	rendered map[string]int
	skipped  map[string]int
}

func (f *fakeRecorder) RegionRendered(name string) { f.rendered[name]++ }
func (f *fakeRecorder) RegionSkipped(name string)  { f.skipped[name]++ }

func TestRecorder(t *testing.T) {
	rec := &fakeRecorder{rendered: map[string]int{}, skipped: map[string]int{}}
	s := &testStore{}
	WithViewModel(s, deriveA, renderA, Named("clock"), WithRecorder(rec))

	s.SetA(1)
	s.SetB(1)
	s.SetB(2)

	if diff := cmp.Diff(map[string]int{"clock": 2}, rec.rendered); diff != "" {
		t.Errorf("rendered mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"clock": 2}, rec.skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
}
