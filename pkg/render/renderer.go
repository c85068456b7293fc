package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/vango-dev/memoview/pkg/vdom"
)

// RendererConfig configures the HTML renderer.
type RendererConfig struct {
	// Pretty enables indented output. Development only: it adds whitespace
	// text to the document.
	Pretty bool

	// Indent is the string used for each indentation level in pretty mode.
	// Defaults to two spaces if not specified.
	Indent string
}

// Renderer writes VNode trees as HTML. A Renderer holds no per-call state
// and may be shared.
type Renderer struct {
	config RendererConfig
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config RendererConfig) *Renderer {
	if config.Indent == "" {
		config.Indent = "  "
	}
	return &Renderer{config: config}
}

// RenderToString renders a VNode tree to an HTML string.
func (r *Renderer) RenderToString(node *vdom.VNode) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToWriter(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter streams a VNode tree to the given writer.
func (r *Renderer) RenderToWriter(w io.Writer, node *vdom.VNode) error {
	ew := &errWriter{w: w}
	r.renderNode(ew, node, 0)
	return ew.err
}

// errWriter remembers the first write error and turns later writes into
// no-ops, so render functions don't check every write.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) WriteString(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (ew *errWriter) fail(err error) {
	if ew.err == nil {
		ew.err = err
	}
}

func (r *Renderer) renderNode(w *errWriter, node *vdom.VNode, depth int) {
	if node == nil {
		return
	}

	switch node.Kind {
	case vdom.KindElement:
		r.renderElement(w, node, depth)
	case vdom.KindText:
		w.WriteString(escapeHTML(node.Text))
	case vdom.KindFragment:
		for _, child := range node.Children {
			r.renderNode(w, child, depth)
		}
	case vdom.KindRaw:
		w.WriteString(node.Text)
	default:
		w.fail(fmt.Errorf("render: unknown node kind: %d", node.Kind))
	}
}

func (r *Renderer) renderElement(w *errWriter, node *vdom.VNode, depth int) {
	if r.config.Pretty && depth > 0 {
		r.writeIndent(w, depth)
	}

	w.WriteString("<" + node.Tag)
	r.renderAttributes(w, node)
	if node.HID != "" {
		w.WriteString(` data-hid="` + escapeAttr(node.HID) + `"`)
	}
	w.WriteString(">")

	if vdom.IsVoidElement(node.Tag) {
		if r.config.Pretty {
			w.WriteString("\n")
		}
		return
	}

	block := r.config.Pretty && hasElementChild(node)
	if block {
		w.WriteString("\n")
	}
	for _, child := range node.Children {
		r.renderNode(w, child, depth+1)
	}
	if block {
		r.writeIndent(w, depth)
	}

	w.WriteString("</" + node.Tag + ">")
	if r.config.Pretty {
		w.WriteString("\n")
	}
}

// renderAttributes writes attributes sorted by name for deterministic
// output. Boolean true renders as a bare attribute, false is omitted.
func (r *Renderer) renderAttributes(w *errWriter, node *vdom.VNode) {
	keys := make([]string, 0, len(node.Props))
	for key := range node.Props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := node.Props[key].(type) {
		case nil:
			continue
		case bool:
			if v {
				w.WriteString(" " + key)
			}
		case string:
			if v != "" {
				w.WriteString(" " + key + `="` + escapeAttr(v) + `"`)
			}
		case int:
			w.WriteString(" " + key + `="` + strconv.Itoa(v) + `"`)
		default:
			w.WriteString(" " + key + `="` + escapeAttr(fmt.Sprintf("%v", v)) + `"`)
		}
	}
}

func hasElementChild(node *vdom.VNode) bool {
	for _, child := range node.Children {
		if child != nil && child.Kind == vdom.KindElement {
			return true
		}
	}
	return false
}

func (r *Renderer) writeIndent(w *errWriter, depth int) {
	for i := 0; i < depth; i++ {
		w.WriteString(r.config.Indent)
	}
}
