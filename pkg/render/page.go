package render

import (
	"io"
	"strconv"

	"github.com/vango-dev/memoview/pkg/vdom"
)

// AppRootID is the id of the element the client swaps session trees into.
const AppRootID = "app"

// PageData contains all data needed to render a complete HTML page.
type PageData struct {
	// Title is the document title.
	Title string

	// Body is rendered inside the app root element.
	Body *vdom.VNode

	// Styles is inline CSS placed in the head.
	Styles string

	// SocketPath is the WebSocket endpoint the client connects to.
	// Empty disables the client script.
	SocketPath string

	// Lang is the language attribute for the html element.
	// Defaults to "en" if not specified.
	Lang string
}

// RenderPage writes a complete HTML document.
func (r *Renderer) RenderPage(w io.Writer, page PageData) error {
	lang := page.Lang
	if lang == "" {
		lang = "en"
	}

	ew := &errWriter{w: w}
	ew.WriteString("<!DOCTYPE html>\n")
	ew.WriteString(`<html lang="` + escapeAttr(lang) + `">` + "\n")
	ew.WriteString("<head>\n")
	ew.WriteString(`<meta charset="utf-8">` + "\n")
	ew.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	ew.WriteString("<title>" + escapeHTML(page.Title) + "</title>\n")
	if page.Styles != "" {
		ew.WriteString("<style>" + page.Styles + "</style>\n")
	}
	ew.WriteString("</head>\n")
	ew.WriteString("<body>\n")
	ew.WriteString(`<div id="` + AppRootID + `">`)
	r.renderNode(ew, page.Body, 0)
	ew.WriteString("</div>\n")
	if page.SocketPath != "" {
		ew.WriteString("<script>var MEMOVIEW_SOCKET=" + strconv.Quote(page.SocketPath) + ";" + clientScript + "</script>\n")
	}
	ew.WriteString("</body>\n</html>\n")
	return ew.err
}
