package rendercore

import (
	"fmt"
	"strings"

	"github.com/go-drift/rendercore/pkg/rendering"
)

// RenderTreeNode positions a render unit inside a render tree.
type RenderTreeNode struct {
	tree             *RenderTree
	index            int
	parent           int
	children         []int
	unit             *RenderUnit
	bounds           rendering.Rect
	absoluteBounds   rendering.Rect
	positionInParent int
	layoutData       any
}

// Index returns the commit order index of the node.
func (n *RenderTreeNode) Index() int { return n.index }

// Unit returns the render unit of the node.
func (n *RenderTreeNode) Unit() *RenderUnit { return n.unit }

// Bounds returns the bounds relative to the parent node.
func (n *RenderTreeNode) Bounds() rendering.Rect { return n.bounds }

// AbsoluteBounds returns the bounds relative to the tree root.
func (n *RenderTreeNode) AbsoluteBounds() rendering.Rect { return n.absoluteBounds }

// PositionInParent returns the z-order index inside the parent host.
func (n *RenderTreeNode) PositionInParent() int { return n.positionInParent }

// LayoutData returns the opaque layout payload handed to binders.
func (n *RenderTreeNode) LayoutData() any { return n.layoutData }

// Parent returns the parent node, or nil for the root.
func (n *RenderTreeNode) Parent() *RenderTreeNode {
	if n.parent < 0 {
		return nil
	}
	return &n.tree.nodes[n.parent]
}

// ChildCount returns the number of direct children.
func (n *RenderTreeNode) ChildCount() int { return len(n.children) }

// ChildAt returns the i-th child.
func (n *RenderTreeNode) ChildAt(i int) *RenderTreeNode {
	return &n.tree.nodes[n.children[i]]
}

// DebugString describes the node on one line.
func (n *RenderTreeNode) DebugString() string {
	parentID := int64(-1)
	if p := n.Parent(); p != nil {
		parentID = p.unit.ID
	}
	return fmt.Sprintf("id=%d; contentType=%q; description=%q; index=%d; parentId=%d; position=%d; bounds=%v; childCount=%d",
		n.unit.ID, n.unit.Type, n.unit.Description, n.index, parentID, n.positionInParent, n.bounds, len(n.children))
}

// ExtensionInput pairs a mount extension with the input it consumes for one
// render tree.
type ExtensionInput struct {
	Extension MountExtension
	Input     any
}

// RenderTree is an immutable committed render tree.
//
// Nodes are stored in commit order: every parent precedes its children and
// the root is at index 0.
type RenderTree struct {
	nodes      []RenderTreeNode
	idToIndex  map[int64]int
	width      float64
	height     float64
	extensions []ExtensionInput
}

// Root returns the root node.
func (t *RenderTree) Root() *RenderTreeNode { return &t.nodes[0] }

// NodeAt returns the node at commit index i.
func (t *RenderTree) NodeAt(i int) *RenderTreeNode { return &t.nodes[i] }

// NodeIndex returns the commit index of the node with id, or -1.
func (t *RenderTree) NodeIndex(id int64) int {
	if i, ok := t.idToIndex[id]; ok {
		return i
	}
	return -1
}

// MountableOutputCount returns the number of nodes.
func (t *RenderTree) MountableOutputCount() int { return len(t.nodes) }

// Width returns the laid out width of the tree.
func (t *RenderTree) Width() float64 { return t.width }

// Height returns the laid out height of the tree.
func (t *RenderTree) Height() float64 { return t.height }

// Extensions returns the extensions active for this tree.
func (t *RenderTree) Extensions() []ExtensionInput { return t.extensions }

// DebugString dumps the tree, one indented node per line.
func (t *RenderTree) DebugString() string {
	var sb strings.Builder
	var walk func(n *RenderTreeNode, depth int)
	walk = func(n *RenderTreeNode, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.DebugString())
		sb.WriteByte('\n')
		for i := range n.children {
			walk(n.ChildAt(i), depth+1)
		}
	}
	walk(t.Root(), 0)
	return sb.String()
}

// Builder assembles a RenderTree in commit order.
//
// Errors are sticky: after the first invalid call the builder ignores further
// additions and Build reports the error.
type Builder struct {
	tree       *RenderTree
	extensions []pendingExtension
	err        error
}

type pendingExtension struct {
	extension MountExtension
	input     func(*RenderTree) any
}

// NewBuilder starts a tree whose root is a host of the given size.
func NewBuilder(root *RenderUnit, width, height float64) *Builder {
	b := &Builder{tree: &RenderTree{
		idToIndex: make(map[int64]int),
		width:     width,
		height:    height,
	}}
	switch {
	case root == nil:
		b.err = fmt.Errorf("render tree root is nil")
	case root.ID != RootHostID:
		b.err = fmt.Errorf("render tree root must have id %d, got %d", RootHostID, root.ID)
	default:
		bounds := rendering.RectFromLTWH(0, 0, width, height)
		b.tree.nodes = append(b.tree.nodes, RenderTreeNode{
			tree:           b.tree,
			parent:         -1,
			unit:           root,
			bounds:         bounds,
			absoluteBounds: bounds,
		})
		b.tree.idToIndex[root.ID] = 0
	}
	return b
}

// Add appends unit as the last child of parentID. Bounds are relative to the
// parent.
func (b *Builder) Add(parentID int64, unit *RenderUnit, bounds rendering.Rect, layoutData any) *Builder {
	if b.err != nil {
		return b
	}
	if unit == nil {
		b.err = fmt.Errorf("render unit added under %d is nil", parentID)
		return b
	}
	if _, dup := b.tree.idToIndex[unit.ID]; dup {
		b.err = fmt.Errorf("duplicate render unit id %d", unit.ID)
		return b
	}
	parentIndex, ok := b.tree.idToIndex[parentID]
	if !ok {
		b.err = fmt.Errorf("parent %d of render unit %d is not in the tree", parentID, unit.ID)
		return b
	}
	index := len(b.tree.nodes)
	parent := &b.tree.nodes[parentIndex]
	node := RenderTreeNode{
		tree:             b.tree,
		index:            index,
		parent:           parentIndex,
		unit:             unit,
		bounds:           bounds,
		absoluteBounds:   bounds.Translate(parent.absoluteBounds.Left, parent.absoluteBounds.Top),
		positionInParent: len(parent.children),
		layoutData:       layoutData,
	}
	parent.children = append(parent.children, index)
	b.tree.nodes = append(b.tree.nodes, node)
	b.tree.idToIndex[unit.ID] = index
	return b
}

// AddExtension activates ext with input for the tree.
func (b *Builder) AddExtension(ext MountExtension, input any) *Builder {
	return b.AddExtensionFunc(ext, func(*RenderTree) any { return input })
}

// AddExtensionFunc activates ext with an input derived from the finished
// tree. input runs once, during Build.
func (b *Builder) AddExtensionFunc(ext MountExtension, input func(*RenderTree) any) *Builder {
	if b.err == nil && ext != nil {
		b.extensions = append(b.extensions, pendingExtension{extension: ext, input: input})
	}
	return b
}

// Build returns the finished tree.
func (b *Builder) Build() (*RenderTree, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, pe := range b.extensions {
		b.tree.extensions = append(b.tree.extensions, ExtensionInput{
			Extension: pe.extension,
			Input:     pe.input(b.tree),
		})
	}
	b.extensions = nil
	return b.tree, nil
}
