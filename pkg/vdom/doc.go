// Package vdom provides the virtual DOM that memoview views render to.
//
// A view produces a VNode tree on every render. The server keeps the tree
// it sent last and calls Diff to compute the patches that bring the browser
// up to date.
//
// # Element API
//
// Elements are created using variadic factory functions:
//
//	Div(Class("region"),
//	    H3(Text("clockView")),
//	    P(Textf("clock: %d", n)),
//	)
//
// # Diffing
//
// Diff walks both trees and emits Patch operations. Subtrees that are the
// same *VNode in both trees are skipped without being visited, which is how
// a memoized region that did not re-render costs nothing.
//
// Text and raw nodes have no HID. When a text node is the only child of its
// element, a change becomes SetText on the element; anywhere else the
// element is replaced. Insert, move and remove patches are only emitted
// among element siblings, where a child's index matches the browser's.
//
// # Hydration IDs
//
// AssignHIDs gives every element without one a hydration ID. Diff copies IDs
// from the previous tree into matching nodes of the next one; assigning
// after Diff only touches nodes that are new.
package vdom
