package vdom

// voidElements are elements that cannot have children.
var voidElements = map[string]bool{
	"br":    true,
	"hr":    true,
	"img":   true,
	"input": true,
	"link":  true,
	"meta":  true,
}

// IsVoidElement returns true if the tag is a void element.
func IsVoidElement(tag string) bool {
	return voidElements[tag]
}

// createElement builds an element from mixed arguments. Attr and []Attr set
// attributes, nil is skipped, and anything else goes through appendChild.
func createElement(tag string, args []any) *VNode {
	node := &VNode{Kind: KindElement, Tag: tag, Props: make(Props)}
	for _, arg := range args {
		switch v := arg.(type) {
		case Attr:
			node.setAttr(v)
		case []Attr:
			for _, a := range v {
				node.setAttr(a)
			}
		default:
			node.Children = appendChild(node.Children, arg)
		}
	}
	return node
}

func (v *VNode) setAttr(a Attr) {
	if a.IsEmpty() {
		return
	}
	if a.Key == "key" {
		if s, ok := a.Value.(string); ok {
			v.Key = s
		}
		return
	}
	v.Props[a.Key] = a.Value
}

// Document structure

func Main(args ...any) *VNode    { return createElement("main", args) }
func Section(args ...any) *VNode { return createElement("section", args) }
func Header(args ...any) *VNode  { return createElement("header", args) }
func H1(args ...any) *VNode      { return createElement("h1", args) }
func H2(args ...any) *VNode      { return createElement("h2", args) }
func H3(args ...any) *VNode      { return createElement("h3", args) }

// Content

func Div(args ...any) *VNode    { return createElement("div", args) }
func P(args ...any) *VNode      { return createElement("p", args) }
func Span(args ...any) *VNode   { return createElement("span", args) }
func Small(args ...any) *VNode  { return createElement("small", args) }
func Hr(args ...any) *VNode     { return createElement("hr", args) }
func Button(args ...any) *VNode { return createElement("button", args) }
