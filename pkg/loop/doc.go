// Package loop provides the single logical UI thread that memoview runs on.
//
// Every store mutation, every memoized region re-evaluation and every tree
// diff happens inside a callback executed by Loop.Run. Other goroutines
// (WebSocket readers, tickers) never touch view state directly; they hand a
// closure to Dispatch and the loop runs it in FIFO order.
//
// # Timers
//
// Every schedules a repeating callback and After a one-shot callback. The
// ticker itself lives on its own goroutine but only ever dispatches; the
// callback runs on the loop. Cancel is idempotent and, when called from the
// loop, guarantees the callback does not run again:
//
//	t := l.Every(time.Second, func() {
//	    vm.Increment()
//	})
//	defer t.Cancel()
//
// # Clocks
//
// Time is read through a Clock. ManualClock lets tests advance time
// deterministically and then call Flush to wait for the resulting callbacks.
package loop
