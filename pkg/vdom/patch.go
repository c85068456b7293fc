package vdom

// PatchOp identifies one DOM operation. The zero value is not a valid op.
type PatchOp uint8

const (
	PatchSetText PatchOp = iota + 1
	PatchSetAttr
	PatchRemoveAttr
	PatchInsertNode
	PatchRemoveNode
	PatchMoveNode
	PatchReplaceNode
)

var patchOpNames = [...]string{
	PatchSetText:     "SetText",
	PatchSetAttr:     "SetAttr",
	PatchRemoveAttr:  "RemoveAttr",
	PatchInsertNode:  "InsertNode",
	PatchRemoveNode:  "RemoveNode",
	PatchMoveNode:    "MoveNode",
	PatchReplaceNode: "ReplaceNode",
}

// String returns the op name used on the wire.
func (op PatchOp) String() string {
	if int(op) < len(patchOpNames) && patchOpNames[op] != "" {
		return patchOpNames[op]
	}
	return "Unknown"
}

// Patch is one DOM operation addressed by hydration ID.
//
// HID names the element the op applies to. InsertNode and MoveNode also
// carry ParentID and Index; InsertNode and ReplaceNode carry Node.
type Patch struct {
	Op       PatchOp
	HID      string
	Key      string // attribute name for SetAttr and RemoveAttr
	Value    string // text for SetText, attribute value for SetAttr
	Node     *VNode
	Index    int
	ParentID string
}
