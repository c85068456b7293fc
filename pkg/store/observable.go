// Package store provides the explicit observer used by memoview's view models.
//
// A concrete store embeds Observable, changes its fields only inside mutator
// methods and calls Notify once per mutation:
//
//	type Settings struct {
//	    store.Observable
//	    dark bool
//	}
//
//	func (s *Settings) SetDark(v bool) {
//	    if s.Closed() {
//	        return
//	    }
//	    s.dark = v
//	    s.Notify()
//	}
//
// There is no implicit reactivity and no batching: each Notify reaches every
// subscriber exactly once, in subscription order.
package store

import (
	"sync"
	"sync/atomic"
)

type subscription struct {
	id uint64
	fn func()
}

// Observable holds a list of subscriber callbacks. The zero value is ready
// to use.
type Observable struct {
	// mu protects subs and nextID.
	mu     sync.Mutex
	subs   []subscription
	nextID uint64

	closed atomic.Bool

	// notifications counts Notify calls that reached subscribers.
	notifications atomic.Uint64
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is idempotent. Subscribing to a closed Observable
// returns a no-op unsubscribe and fn is never called.
func (o *Observable) Subscribe(fn func()) (unsubscribe func()) {
	if fn == nil || o.closed.Load() {
		return func() {}
	}

	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.subs = append(o.subs, subscription{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { o.unsubscribe(id) })
	}
}

func (o *Observable) unsubscribe(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, s := range o.subs {
		if s.id == id {
			// Keep registration order for the remaining subscribers.
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			return
		}
	}
}

// Notify invokes every subscriber once, synchronously, in subscription order.
// Subscribers added or removed during Notify take effect on the next call.
// Notify on a closed Observable does nothing.
func (o *Observable) Notify() {
	if o.closed.Load() {
		return
	}

	// Copy subscribers so callbacks may (un)subscribe without deadlocking.
	o.mu.Lock()
	subs := make([]subscription, len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	o.notifications.Add(1)
	for _, s := range subs {
		s.fn()
	}
}

// Subscribers returns the number of registered subscribers.
func (o *Observable) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

// Notifications returns how many times Notify reached subscribers.
func (o *Observable) Notifications() uint64 {
	return o.notifications.Load()
}

// Close tears the Observable down: all subscribers are dropped and later
// Notify calls are ignored. Safe to call more than once.
func (o *Observable) Close() {
	if o.closed.Swap(true) {
		return
	}
	o.mu.Lock()
	o.subs = nil
	o.mu.Unlock()
}

// Closed reports whether Close has been called. Mutators check it so that a
// mutation arriving after teardown is dropped.
func (o *Observable) Closed() bool {
	return o.closed.Load()
}
