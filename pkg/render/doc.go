// Package render turns VNode trees into HTML.
//
// The renderer is used twice: once for the full page served on GET /, and
// again for every node carried by an InsertNode or ReplaceNode patch.
//
//	r := render.NewRenderer(render.RendererConfig{})
//	html, err := r.RenderToString(node)
//
// Elements that carry a hydration ID are written with a data-hid attribute
// so the thin client can find them when patches arrive. The renderer never
// assigns IDs itself; see vdom.AssignHIDs.
//
// # Security
//
// Text and attribute values are escaped. KindRaw nodes are written verbatim
// and must only hold trusted markup.
package render
