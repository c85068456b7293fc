package server

import (
	"encoding/json"
	"fmt"

	"github.com/vango-dev/memoview/internal/errors"
	"github.com/vango-dev/memoview/pkg/render"
	"github.com/vango-dev/memoview/pkg/vdom"
)

// ServerFrame is a message sent to the client.
type ServerFrame struct {
	Seq     uint64      `json:"seq,omitempty"`
	HTML    string      `json:"html,omitempty"`
	Patches []WirePatch `json:"patches,omitempty"`
	Error   *WireError  `json:"error,omitempty"`
}

// WirePatch is a vdom.Patch as the client script applies it. Nodes are
// sent as rendered HTML.
type WirePatch struct {
	Op     string `json:"op"`
	HID    string `json:"hid,omitempty"`
	Key    string `json:"key,omitempty"`
	Value  string `json:"value,omitempty"`
	HTML   string `json:"html,omitempty"`
	Index  int    `json:"index"`
	Parent string `json:"parent,omitempty"`
}

// WireError reports a rejected client message.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ClientFrame is a message received from the client.
type ClientFrame struct {
	Action string `json:"action"`
}

// decodeClientFrame parses a client message. Any failure is an E301.
func decodeClientFrame(data []byte) (ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return f, errors.New("E301").Wrap(err)
	}
	if f.Action == "" {
		return f, errors.New("E301").WithDetail("Missing action field")
	}
	return f, nil
}

// encodePatches converts patches for the wire, rendering inserted and
// replacing nodes with their HIDs.
func encodePatches(r *render.Renderer, patches []vdom.Patch) ([]WirePatch, error) {
	out := make([]WirePatch, 0, len(patches))
	for _, p := range patches {
		wp := WirePatch{
			Op:     p.Op.String(),
			HID:    p.HID,
			Key:    p.Key,
			Value:  p.Value,
			Index:  p.Index,
			Parent: p.ParentID,
		}
		if p.Node != nil {
			html, err := r.RenderToString(p.Node)
			if err != nil {
				return nil, fmt.Errorf("server: render %s patch: %w", wp.Op, err)
			}
			wp.HTML = html
		}
		out = append(out, wp)
	}
	return out, nil
}

// errorFrame builds the error frame for err. Errors without a code are
// reported as invalid client messages.
func errorFrame(err error) ServerFrame {
	e := errors.FromError(err, "E301")
	return ServerFrame{Error: &WireError{
		Code:    e.Code,
		Message: e.Message,
		Detail:  e.Detail,
	}}
}
