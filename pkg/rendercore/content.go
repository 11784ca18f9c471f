package rendercore

import (
	"slices"

	"github.com/go-drift/rendercore/pkg/rendering"
)

// ContentType tags the kind of native content a render unit produces.
// Pools recycle content only between units of the same type.
type ContentType string

// HostContentType is the content type of host render units.
const HostContentType ContentType = "host"

// Content is mountable native content: either a *Host or a *Leaf.
type Content interface {
	contentKind() string
}

// BoundsApplier is implemented by leaf handles that position themselves.
type BoundsApplier interface {
	ApplyBounds(bounds rendering.Rect)
}

// Recycler is implemented by leaf handles that can refuse recycling.
type Recycler interface {
	Recyclable() bool
}

// VisibleBoundsListener is implemented by leaf handles that host a nested
// render tree and must learn about visible bounds changes of their parent.
type VisibleBoundsListener interface {
	NotifyVisibleBoundsChanged()
}

// HostListener observes structural changes of a host.
type HostListener interface {
	OnItemMounted(host *Host, index int, item *MountItem)
	OnItemUnmounted(host *Host, index int, item *MountItem)
	OnItemMoved(host *Host, item *MountItem, from, to int)
}

// Leaf wraps a native handle that cannot hold children.
type Leaf struct {
	Handle any
	bounds rendering.Rect
}

// NewLeaf wraps handle as leaf content.
func NewLeaf(handle any) *Leaf {
	return &Leaf{Handle: handle}
}

func (*Leaf) contentKind() string { return "leaf" }

// Bounds returns the bounds last applied to the leaf.
func (l *Leaf) Bounds() rendering.Rect {
	return l.bounds
}

func (l *Leaf) applyBounds(bounds rendering.Rect) {
	l.bounds = bounds
	if applier, ok := l.Handle.(BoundsApplier); ok {
		applier.ApplyBounds(bounds)
	}
}

func (l *Leaf) recyclable() bool {
	if r, ok := l.Handle.(Recycler); ok {
		return r.Recyclable()
	}
	return true
}

// Host is native content holding mount items at z-ordered indices.
//
// Moving an item onto an occupied index parks the previous occupant in a
// scrap slot until it is moved again or unmounted.
type Host struct {
	items         map[int]*MountItem
	scrap         map[int]*MountItem
	bounds        rendering.Rect
	visibleRect   rendering.Rect
	nonRecyclable bool
	listener      HostListener
}

// NewHost creates an empty host.
func NewHost() *Host {
	return &Host{items: make(map[int]*MountItem)}
}

func (*Host) contentKind() string { return "host" }

// SetListener installs a listener for structural changes.
func (h *Host) SetListener(l HostListener) {
	h.listener = l
}

// Mount inserts item at index.
func (h *Host) Mount(index int, item *MountItem) {
	if existing := h.items[index]; existing != nil && existing != item {
		h.parkInScrap(index, existing)
	}
	h.items[index] = item
	if h.listener != nil {
		h.listener.OnItemMounted(h, index, item)
	}
}

// Unmount removes item from index.
func (h *Host) Unmount(index int, item *MountItem) {
	switch {
	case h.scrap[index] == item && item != nil:
		delete(h.scrap, index)
	case h.items[index] == item:
		delete(h.items, index)
	default:
		// The item was moved without the caller knowing its new index.
		for i, it := range h.items {
			if it == item {
				delete(h.items, i)
				index = i
				break
			}
		}
	}
	if h.listener != nil {
		h.listener.OnItemUnmounted(h, index, item)
	}
}

// MoveItem moves item from oldIndex to newIndex. A nil item refers to the
// item parked in scrap at oldIndex.
func (h *Host) MoveItem(item *MountItem, oldIndex, newIndex int) {
	if item == nil {
		item = h.scrap[oldIndex]
	}
	if item == nil || oldIndex == newIndex && h.items[newIndex] == item {
		return
	}
	if h.items[oldIndex] == item {
		delete(h.items, oldIndex)
	} else if h.scrap[oldIndex] == item {
		delete(h.scrap, oldIndex)
	}
	if existing := h.items[newIndex]; existing != nil && existing != item {
		h.parkInScrap(newIndex, existing)
	}
	h.items[newIndex] = item
	if h.listener != nil {
		h.listener.OnItemMoved(h, item, oldIndex, newIndex)
	}
}

func (h *Host) parkInScrap(index int, item *MountItem) {
	if h.scrap == nil {
		h.scrap = make(map[int]*MountItem)
	}
	h.scrap[index] = item
}

// MountItemCount returns the number of items held, including scrap.
func (h *Host) MountItemCount() int {
	return len(h.items) + len(h.scrap)
}

// MountItemAt returns the item at index, or nil.
func (h *Host) MountItemAt(index int) *MountItem {
	return h.items[index]
}

// Items returns the held items in z-order (ascending index).
func (h *Host) Items() []*MountItem {
	indices := make([]int, 0, len(h.items))
	for i := range h.items {
		indices = append(indices, i)
	}
	slices.Sort(indices)
	out := make([]*MountItem, len(indices))
	for i, idx := range indices {
		out[i] = h.items[idx]
	}
	return out
}

// Bounds returns the host bounds relative to its parent.
func (h *Host) Bounds() rendering.Rect {
	return h.bounds
}

// SetBounds positions the host. The root host of a MountState must be sized
// by its owner; its height bounds incremental mount's bottom-edge walk.
func (h *Host) SetBounds(bounds rendering.Rect) {
	h.bounds = bounds
}

// Width returns the host width.
func (h *Host) Width() float64 {
	return h.bounds.Width()
}

// Height returns the host height.
func (h *Host) Height() float64 {
	return h.bounds.Height()
}

// LocalVisibleRect returns the visible part of the host in its own coordinates.
func (h *Host) LocalVisibleRect() rendering.Rect {
	return h.visibleRect
}

// SetLocalVisibleRect records the visible part of the host.
func (h *Host) SetLocalVisibleRect(rect rendering.Rect) {
	h.visibleRect = rect
}

// MarkNonRecyclable prevents the host from being returned to a pool.
func (h *Host) MarkNonRecyclable() {
	h.nonRecyclable = true
}

func (h *Host) recyclable() bool {
	return !h.nonRecyclable && h.MountItemCount() == 0
}

// contentKindOf names the variant of c for error messages.
func contentKindOf(c Content) string {
	if c == nil {
		return "nil"
	}
	return c.contentKind()
}

func isRecyclable(c Content) bool {
	switch c := c.(type) {
	case *Host:
		return c.recyclable()
	case *Leaf:
		return c.recyclable()
	default:
		return false
	}
}

func visibleBoundsListenerOf(c Content) VisibleBoundsListener {
	if leaf, ok := c.(*Leaf); ok {
		if l, ok := leaf.Handle.(VisibleBoundsListener); ok {
			return l
		}
	}
	return nil
}

func applyBoundsToMountContent(node *RenderTreeNode, c Content) {
	switch c := c.(type) {
	case *Host:
		c.SetBounds(node.Bounds())
	case *Leaf:
		c.applyBounds(node.Bounds())
	}
}
