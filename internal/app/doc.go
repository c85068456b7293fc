// Package app is the memoization sample: a ViewModel store with a counter
// timer, and a View that renders it once without memoization and five
// times through memoized regions.
//
// Everything in this package runs on the UI loop. The ViewModel is not safe
// for concurrent use; callers reach it through loop.Dispatch or loop.Do.
package app
