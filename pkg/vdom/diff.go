package vdom

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Diff compares two VNode trees and returns the patches needed to transform
// prev into next. HIDs of matched nodes are copied from prev into next.
//
// Text and raw nodes carry no HID. A change to one is sent as SetText on its
// element when it is that element's only child, and otherwise as a
// ReplaceNode of the element. A change at the root that no element can
// absorb yields a ReplaceNode with an empty HID, meaning the whole tree.
func Diff(prev, next *VNode) []Patch {
	d := &differ{}
	if d.node(prev, next) {
		d.emit(Patch{Op: PatchReplaceNode, Node: next})
	}
	return d.patches
}

// differ accumulates patches for one Diff call.
type differ struct {
	patches []Patch
}

func (d *differ) emit(p Patch) {
	d.patches = append(d.patches, p)
}

// node compares one position. It returns true when the change cannot be
// addressed at this position and the closest element ancestor has to be
// replaced instead.
func (d *differ) node(prev, next *VNode) bool {
	// Same node (or both nil): a memoized subtree that was not re-rendered.
	if prev == next {
		return false
	}
	if prev == nil || next == nil {
		return true
	}

	if prev.Kind != next.Kind || (prev.Kind == KindElement && prev.Tag != next.Tag) {
		if prev.Kind != KindElement {
			return true
		}
		d.emit(Patch{Op: PatchReplaceNode, HID: prev.HID, Node: next})
		return false
	}

	switch prev.Kind {
	case KindText, KindRaw:
		return prev.Text != next.Text
	case KindFragment:
		return d.children(flatten(prev.Children), flatten(next.Children), "")
	case KindElement:
		next.HID = prev.HID
		d.element(prev, next)
	}
	return false
}

// element diffs two elements with the same tag. If a child change cannot be
// addressed, the patches emitted for the element so far are dropped and the
// element is replaced as a whole.
func (d *differ) element(prev, next *VNode) {
	mark := len(d.patches)
	d.props(prev, next)

	prevKids, nextKids := flatten(prev.Children), flatten(next.Children)
	if soleText(prevKids) && soleText(nextKids) {
		if prevKids[0].Text != nextKids[0].Text {
			d.emit(Patch{Op: PatchSetText, HID: prev.HID, Value: nextKids[0].Text})
		}
		return
	}

	if d.children(prevKids, nextKids, prev.HID) {
		d.patches = d.patches[:mark]
		d.emit(Patch{Op: PatchReplaceNode, HID: prev.HID, Node: next})
	}
}

// children diffs the flattened child lists of one parent. Insert, remove and
// move patches address children by position, which only matches the
// browser's childNodes when every child is an element with its own HID;
// otherwise a structural change escalates to the parent.
func (d *differ) children(prev, next []*VNode, parentHID string) bool {
	positional := parentHID != "" && allElements(prev) && allElements(next)
	if hasKeys(prev) || hasKeys(next) {
		return d.keyedChildren(prev, next, parentHID, positional)
	}
	return d.unkeyedChildren(prev, next, parentHID, positional)
}

// unkeyedChildren matches children by position.
func (d *differ) unkeyedChildren(prev, next []*VNode, parentHID string, positional bool) bool {
	common := min(len(prev), len(next))
	if !positional && len(prev) != len(next) {
		return true
	}

	for i := 0; i < common; i++ {
		if d.node(prev[i], next[i]) {
			return true
		}
	}
	for i := common; i < len(next); i++ {
		d.emit(Patch{Op: PatchInsertNode, ParentID: parentHID, Index: i, Node: next[i]})
	}
	for i := common; i < len(prev); i++ {
		d.emit(Patch{Op: PatchRemoveNode, HID: prev[i].HID})
	}
	return false
}

// keyedChildren matches children by key. order tracks the browser's child
// list as the emitted patches rearrange it, so a move is only sent for a
// child that is not already in place. Unkeyed and duplicate-keyed children
// are inserted fresh.
func (d *differ) keyedChildren(prev, next []*VNode, parentHID string, positional bool) bool {
	prevByKey := make(map[string]int, len(prev))
	for i, child := range prev {
		if child.Key != "" {
			prevByKey[child.Key] = i
		}
	}

	order := append([]*VNode(nil), prev...)
	matched := make([]bool, len(prev))
	for i, child := range next {
		j, ok := prevByKey[child.Key]
		if child.Key == "" || !ok || matched[j] {
			if !positional {
				return true
			}
			d.emit(Patch{Op: PatchInsertNode, ParentID: parentHID, Index: i, Node: child})
			order = insertAt(order, i, child)
			continue
		}

		matched[j] = true
		if order[i] != prev[j] {
			if !positional {
				return true
			}
			d.emit(Patch{Op: PatchMoveNode, HID: prev[j].HID, ParentID: parentHID, Index: i})
			order = insertAt(removeNode(order, prev[j]), i, prev[j])
		}
		if d.node(prev[j], child) {
			return true
		}
	}

	for j, child := range prev {
		if !matched[j] {
			if !positional {
				return true
			}
			d.emit(Patch{Op: PatchRemoveNode, HID: child.HID})
		}
	}
	return false
}

// flatten expands fragments so that each entry is one browser node. Nil
// children render nothing and are dropped.
func flatten(children []*VNode) []*VNode {
	flat := true
	for _, child := range children {
		if child == nil || child.Kind == KindFragment {
			flat = false
			break
		}
	}
	if flat {
		return children
	}

	out := make([]*VNode, 0, len(children))
	for _, child := range children {
		switch {
		case child == nil:
		case child.Kind == KindFragment:
			out = append(out, flatten(child.Children)...)
		default:
			out = append(out, child)
		}
	}
	return out
}

func soleText(children []*VNode) bool {
	return len(children) == 1 && children[0].Kind == KindText
}

func allElements(children []*VNode) bool {
	for _, child := range children {
		if child.Kind != KindElement {
			return false
		}
	}
	return true
}

func hasKeys(children []*VNode) bool {
	for _, child := range children {
		if child.Key != "" {
			return true
		}
	}
	return false
}

func insertAt(nodes []*VNode, i int, n *VNode) []*VNode {
	nodes = append(nodes, nil)
	copy(nodes[i+1:], nodes[i:])
	nodes[i] = n
	return nodes
}

func removeNode(nodes []*VNode, n *VNode) []*VNode {
	for i, c := range nodes {
		if c == n {
			return append(nodes[:i], nodes[i+1:]...)
		}
	}
	return nodes
}

// props compares attributes of two elements with the same tag. Values the
// renderer omits (nil, false, "") count as absent.
func (d *differ) props(prev, next *VNode) {
	for key, prevVal := range prev.Props {
		if !rendered(prevVal) {
			continue
		}
		nextVal := next.Props[key]
		switch {
		case !rendered(nextVal):
			d.emit(Patch{Op: PatchRemoveAttr, HID: prev.HID, Key: key})
		case !propsEqual(prevVal, nextVal):
			d.emit(Patch{Op: PatchSetAttr, HID: prev.HID, Key: key, Value: propToString(nextVal)})
		}
	}

	for key, nextVal := range next.Props {
		if rendered(nextVal) && !rendered(prev.Props[key]) {
			d.emit(Patch{Op: PatchSetAttr, HID: prev.HID, Key: key, Value: propToString(nextVal)})
		}
	}
}

func rendered(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}
	return true
}

// propsEqual compares two prop values for equality.
func propsEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}

// propToString converts a prop value to its attribute string.
func propToString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return ""
	case int:
		return strconv.Itoa(val)
	case []string:
		return strings.Join(val, " ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
