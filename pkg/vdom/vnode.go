package vdom

// VKind says which VNode fields are meaningful.
type VKind uint8

const (
	KindElement  VKind = iota // Tag, Props, Children
	KindText                  // Text, escaped when rendered
	KindFragment              // Children only
	KindRaw                   // Text, rendered verbatim
)

var kindNames = [...]string{
	KindElement:  "Element",
	KindText:     "Text",
	KindFragment: "Fragment",
	KindRaw:      "Raw",
}

func (k VKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// VNode is one node of a rendered tree. Trees are immutable once returned
// from a render function, which lets Diff skip shared subtrees by pointer.
type VNode struct {
	Kind     VKind
	Tag      string
	Props    Props
	Children []*VNode
	Key      string // matches children across renders
	Text     string
	HID      string // set by AssignHIDs
}

// Props maps attribute names to string, bool or int values.
type Props map[string]any

// Attr is one attribute passed to an element constructor.
type Attr struct {
	Key   string
	Value any
}

// IsEmpty reports whether a is the zero Attr, which constructors skip.
func (a Attr) IsEmpty() bool {
	return a.Key == ""
}

// Walk calls fn for node and every descendant, depth first.
// Returning false from fn skips the node's children.
func Walk(node *VNode, fn func(*VNode) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for _, child := range node.Children {
		Walk(child, fn)
	}
}
