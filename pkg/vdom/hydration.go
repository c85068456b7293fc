package vdom

import "strconv"

// HIDGenerator hands out hydration IDs "h1", "h2", ... for one client tree.
// IDs are never reused, so a generator must live as long as the tree it
// numbers. It is not safe for concurrent use; sessions own one each.
type HIDGenerator struct {
	last uint64
}

// NewHIDGenerator returns a generator whose first ID is "h1".
func NewHIDGenerator() *HIDGenerator {
	return &HIDGenerator{}
}

// Next returns a fresh ID.
func (g *HIDGenerator) Next() string {
	g.last++
	return "h" + strconv.FormatUint(g.last, 10)
}

// AssignHIDs numbers every element of node that has no HID yet and
// returns how many it numbered. Run it after Diff, which carries the IDs
// of matched elements over from the previous tree.
func AssignHIDs(node *VNode, gen *HIDGenerator) int {
	assigned := 0
	Walk(node, func(n *VNode) bool {
		if n.Kind == KindElement && n.HID == "" {
			n.HID = gen.Next()
			assigned++
		}
		return true
	})
	return assigned
}
