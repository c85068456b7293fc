// Package memo provides memoized regions: view subtrees that re-render only
// when a derived slice of a store changes.
//
// A region is built from a store, a derivation function and a render
// function:
//
//	type pausedSlice struct{ Paused bool }
//
//	region := memo.WithViewModel(vm,
//	    func(vm *app.ViewModel) pausedSlice { return pausedSlice{vm.IsPaused()} },
//	    func(s pausedSlice) *vdom.VNode {
//	        return vdom.Textf("isPaused: %t", s.Paused)
//	    },
//	)
//
// On construction and on every store notification the region derives a new
// slice and compares it with the last rendered one. Equal slices are
// discarded and the render function is not called, so the previous output
// (and every descendant of it) stays untouched. Unequal slices are rendered
// exactly once and replace the cached slice. The cache holds exactly one
// entry per region.
//
// # Derivations
//
// Derivations must be total, deterministic and free of side effects. Two
// derivations with no mutation in between must produce equal slices.
// Slices compare by value over their own fields, so state the slice does not
// carry can never make two slices differ.
//
// # Lazy reads
//
// Only the slice is tracked. A render function that reads the store
// directly, instead of through its slice argument, sees that state only when
// some tracked field changes and forces a re-render. Until then the output
// is stale:
//
//	func(s videoSlice) *vdom.VNode {
//	    // vm.IsPaused() is NOT part of videoSlice: toggling pause alone
//	    // leaves this text unchanged.
//	    return vdom.Textf("%s / paused=%t", s.Type, vm.IsPaused())
//	}
//
// This is the documented behavior. Put every value a render depends on into
// its slice.
//
// # Threading
//
// Regions are not safe for concurrent use. Create, notify and read them on
// the store's loop (see package loop).
package memo
