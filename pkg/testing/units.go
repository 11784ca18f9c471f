package testing

import (
	"github.com/go-drift/rendercore/pkg/rendercore"
	"github.com/go-drift/rendercore/pkg/rendering"
)

// LeafType is the content type of leaves created by Recorder.Leaf.
const LeafType rendercore.ContentType = "test-leaf"

// Leaf returns a leaf render unit whose binders record into r.
func (r *Recorder) Leaf(id int64) *rendercore.RenderUnit {
	return r.LeafOfType(id, LeafType)
}

// LeafOfType is like Leaf with an explicit content type.
func (r *Recorder) LeafOfType(id int64, t rendercore.ContentType) *rendercore.RenderUnit {
	u := &rendercore.RenderUnit{
		ID:          id,
		Type:        t,
		Description: string(t),
	}
	u.Create = func() rendercore.Content {
		r.created++
		return rendercore.NewLeaf(&Handle{Serial: r.created})
	}
	r.attachBinders(u)
	return u
}

// NestedLeaf returns a leaf unit hosting nested render trees.
func (r *Recorder) NestedLeaf(id int64) *rendercore.RenderUnit {
	u := r.Leaf(id)
	u.HostsRenderTrees = true
	return u
}

// Host returns a host render unit whose binders record into r.
func (r *Recorder) Host(id int64) *rendercore.RenderUnit {
	u := rendercore.NewHostUnit(id)
	r.attachBinders(u)
	return u
}

// Created returns the number of leaf contents created so far.
func (r *Recorder) Created() int {
	return r.created
}

func (r *Recorder) attachBinders(u *rendercore.RenderUnit) {
	id := u.ID
	u.MountBinders = []rendercore.Binder{{
		Key:    "record",
		Bind:   func(c rendercore.Content, _ any) { r.record(EventMount, id, c) },
		Unbind: func(c rendercore.Content, _ any) { r.record(EventUnmount, id, c) },
		ShouldUpdate: func(_, _ *rendercore.RenderUnit, _, _ any) bool {
			return false
		},
	}}
	u.AttachBinders = []rendercore.Binder{{
		Key:    "record",
		Bind:   func(c rendercore.Content, _ any) { r.record(EventBind, id, c) },
		Unbind: func(c rendercore.Content, _ any) { r.record(EventUnbind, id, c) },
		ShouldUpdate: func(_, _ *rendercore.RenderUnit, _, _ any) bool {
			return false
		},
	}}
}

// MustBuild builds b or fails the test.
func MustBuild(t TestingT, b *rendercore.Builder) *rendercore.RenderTree {
	t.Helper()
	tree, err := b.Build()
	if err != nil {
		t.Fatalf("building render tree: %v", err)
	}
	return tree
}

// Column adds one leaf per height under the root, stacked vertically from
// y=0 with the given width. Leaf ids start at firstID.
func (r *Recorder) Column(b *rendercore.Builder, firstID int64, width float64, heights ...float64) *rendercore.Builder {
	y := 0.0
	for i, h := range heights {
		b.Add(rendercore.RootHostID, r.Leaf(firstID+int64(i)), rendering.RectFromLTWH(0, y, width, h), nil)
		y += h
	}
	return b
}

// NewRootHost returns a root host sized width x height and fully visible.
func NewRootHost(width, height float64) *rendercore.Host {
	h := rendercore.NewHost()
	bounds := rendering.RectFromLTWH(0, 0, width, height)
	h.SetBounds(bounds)
	h.SetLocalVisibleRect(bounds)
	return h
}
