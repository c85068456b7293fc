package vdom

import "fmt"

// Text returns a text node. The renderer escapes its content.
func Text(content string) *VNode {
	return &VNode{Kind: KindText, Text: content}
}

// Textf is Text with fmt.Sprintf formatting.
func Textf(format string, args ...any) *VNode {
	return Text(fmt.Sprintf(format, args...))
}

// Raw returns a node whose content is written unescaped. Only pass markup
// the program produced itself.
func Raw(html string) *VNode {
	return &VNode{Kind: KindRaw, Text: html}
}

// Fragment groups children without a wrapper element. It accepts the same
// child arguments as the element constructors; attributes are ignored.
func Fragment(children ...any) *VNode {
	node := &VNode{Kind: KindFragment}
	for _, child := range children {
		node.Children = appendChild(node.Children, child)
	}
	return node
}

// appendChild appends the nodes held by arg: a *VNode, a []*VNode or a
// string, which becomes a text node. Nil nodes and other types are skipped.
func appendChild(children []*VNode, arg any) []*VNode {
	switch v := arg.(type) {
	case *VNode:
		if v != nil {
			children = append(children, v)
		}
	case []*VNode:
		for _, c := range v {
			if c != nil {
				children = append(children, c)
			}
		}
	case string:
		children = append(children, Text(v))
	}
	return children
}
