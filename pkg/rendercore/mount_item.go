package rendercore

// MountItem binds mounted content to the render tree node it was mounted
// from and the host it lives in.
type MountItem struct {
	node    *RenderTreeNode
	host    *Host
	content Content
	bound   bool
}

// Node returns the render tree node the item was last mounted or updated from.
func (m *MountItem) Node() *RenderTreeNode { return m.node }

// RenderUnit returns the current render unit of the item.
func (m *MountItem) RenderUnit() *RenderUnit { return m.node.unit }

// Host returns the host holding the item.
func (m *MountItem) Host() *Host { return m.host }

// Content returns the mounted content.
func (m *MountItem) Content() Content { return m.content }

// IsBound reports whether attach binders have run for the item.
func (m *MountItem) IsBound() bool { return m.bound }

func (m *MountItem) update(node *RenderTreeNode) {
	m.node = node
}
