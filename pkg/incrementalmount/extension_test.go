package incrementalmount_test

import (
	"slices"
	"testing"

	"github.com/go-drift/rendercore/pkg/incrementalmount"
	"github.com/go-drift/rendercore/pkg/rendercore"
	"github.com/go-drift/rendercore/pkg/rendering"
	mounttest "github.com/go-drift/rendercore/pkg/testing"
)

const width = 100

type fixture struct {
	rec  *mounttest.Recorder
	ext  *incrementalmount.Extension
	ms   *rendercore.MountState
	root *rendercore.Host
	tree *rendercore.RenderTree
}

// newColumn mounts n rows of height 10 in a root of the given height with
// the root initially showing visible.
func newColumn(t *testing.T, n int, height float64, visible rendering.Rect, opts ...incrementalmount.Option) *fixture {
	t.Helper()
	f := &fixture{
		rec:  mounttest.NewRecorder(),
		ext:  incrementalmount.New(opts...),
		root: mounttest.NewRootHost(width, height),
	}
	f.root.SetLocalVisibleRect(visible)
	f.ms = rendercore.NewMountState(f.root)

	heights := make([]float64, n)
	for i := range heights {
		heights[i] = 10
	}
	b := rendercore.NewBuilder(f.rec.Host(0), width, height)
	incrementalmount.Use(f.rec.Column(b, 1, width, heights...), f.ext)
	f.tree = mounttest.MustBuild(t, b)
	if err := f.ms.Mount(f.tree); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return f
}

func (f *fixture) scroll(t *testing.T, rect rendering.Rect) {
	t.Helper()
	if err := f.ms.NotifyVisibleBoundsChanged(rect); err != nil {
		t.Fatalf("NotifyVisibleBoundsChanged(%v): %v", rect, err)
	}
}

func (f *fixture) state() *incrementalmount.State {
	return f.ms.Delegate().StateFor(f.ext).State().(*incrementalmount.State)
}

// intersecting returns the ids a full pass over rect would mount.
func intersecting(tree *rendercore.RenderTree, rect rendering.Rect) []int64 {
	ids := []int64{rendercore.RootHostID}
	for i := 1; i < tree.MountableOutputCount(); i++ {
		node := tree.NodeAt(i)
		if rect.Intersects(node.AbsoluteBounds()) {
			ids = append(ids, node.Unit().ID)
		}
	}
	return ids
}

func TestMountOnlyMountsVisibleOutputs(t *testing.T) {
	f := newColumn(t, 10, 100, rendering.RectFromLTWH(0, 0, width, 35))
	if got, want := f.ms.MountedIDs(), []int64{0, 1, 2, 3, 4}; !slices.Equal(got, want) {
		t.Errorf("MountedIDs = %v, want %v", got, want)
	}
	if f.rec.Count(mounttest.EventMount, 5) != 0 {
		t.Error("row 5 is outside the visible rect")
	}
	st := f.state()
	if st.PreviousTopsIndex() != f.state().Input().FindTopCursor(35) || st.PreviousBottomsIndex() != 0 {
		t.Errorf("cursors = %d/%d", st.PreviousTopsIndex(), st.PreviousBottomsIndex())
	}
}

func TestBoundaryScenario(t *testing.T) {
	f := newColumn(t, 3, 100, rendering.RectFromLTWH(0, 0, width, 100))
	if got := f.ms.MountedIDs(); !slices.Equal(got, []int64{0, 1, 2, 3}) {
		t.Fatalf("MountedIDs = %v", got)
	}
	f.rec.Reset()

	f.scroll(t, rendering.Rect{Left: 0, Top: 15, Right: width, Bottom: 115})
	if got, want := f.ms.MountedIDs(), []int64{0, 2, 3}; !slices.Equal(got, want) {
		t.Errorf("MountedIDs = %v, want %v", got, want)
	}
	if got := f.rec.Trace(); got != "unbind(1) unmount(1)" {
		t.Errorf("events = %q", got)
	}
}

func TestVerticalScrollMatchesFullPass(t *testing.T) {
	const rows, height = 20, 200
	f := newColumn(t, rows, height, rendering.RectFromLTWH(0, 0, width, 100))

	for _, top := range []float64{5, 15, 35, 95, 145, 125, 65, 3, 42, 147, 7} {
		rect := rendering.RectFromLTWH(0, top, width, 50)
		f.scroll(t, rect)

		want := intersecting(f.tree, rect)
		if got := f.ms.MountedIDs(); !slices.Equal(got, want) {
			t.Fatalf("top=%v: incremental MountedIDs = %v, want %v", top, got, want)
		}

		full := newColumn(t, rows, height, rect)
		if got := full.ms.MountedIDs(); !slices.Equal(got, want) {
			t.Fatalf("top=%v: full pass MountedIDs = %v, want %v", top, got, want)
		}
	}
}

func TestHorizontalChangeReinitializes(t *testing.T) {
	f := newColumn(t, 10, 100, rendering.RectFromLTWH(0, 0, width, 35))
	rect := rendering.Rect{Left: 200, Top: 0, Right: 300, Bottom: 35}
	f.scroll(t, rect)
	if got := f.ms.MountedIDs(); !slices.Equal(got, []int64{0}) {
		t.Errorf("MountedIDs = %v, want only the root", got)
	}
	f.scroll(t, rendering.RectFromLTWH(0, 52, width, 20))
	if got, want := f.ms.MountedIDs(), []int64{0, 6, 7, 8}; !slices.Equal(got, want) {
		t.Errorf("MountedIDs = %v, want %v", got, want)
	}
	if got := f.state().PreviousVisibleRect(); got != rendering.RectFromLTWH(0, 52, width, 20) {
		t.Errorf("PreviousVisibleRect = %v", got)
	}
}

func TestEmptyRects(t *testing.T) {
	f := newColumn(t, 5, 100, rendering.RectFromLTWH(0, 0, width, 100))
	f.scroll(t, rendering.Rect{})
	if got := f.ms.MountedIDs(); !slices.Equal(got, []int64{0}) {
		t.Fatalf("MountedIDs after empty rect = %v", got)
	}
	f.rec.Reset()
	f.scroll(t, rendering.Rect{})
	if len(f.rec.Events()) != 0 {
		t.Errorf("empty to empty should not mount anything: %s", f.rec.Trace())
	}
	f.scroll(t, rendering.RectFromLTWH(0, 0, width, 15))
	if got := f.ms.MountedIDs(); !slices.Equal(got, []int64{0, 1, 2}) {
		t.Errorf("MountedIDs = %v", got)
	}
}

func TestNegativeSpace(t *testing.T) {
	negative := rendering.Rect{Left: 0, Top: -50, Right: width, Bottom: -10}

	t.Run("skipped", func(t *testing.T) {
		f := newColumn(t, 5, 100, rendering.RectFromLTWH(0, 0, width, 100))
		f.scroll(t, negative)
		if got := f.ms.MountedIDs(); !slices.Equal(got, []int64{0, 1, 2, 3, 4, 5}) {
			t.Errorf("MountedIDs = %v, want everything still mounted", got)
		}
		if f.state().PreviousVisibleRect() == negative {
			t.Error("skipped rect should not become the previous rect")
		}
	})

	t.Run("processed", func(t *testing.T) {
		f := newColumn(t, 5, 100, rendering.RectFromLTWH(0, 0, width, 100),
			incrementalmount.WithSkipNegativeCoordinates(false))
		f.scroll(t, negative)
		if got := f.ms.MountedIDs(); !slices.Equal(got, []int64{0}) {
			t.Errorf("MountedIDs = %v, want only the root", got)
		}
	})
}

func TestNoInputIsNoop(t *testing.T) {
	ms := rendercore.NewMountState(mounttest.NewRootHost(width, 100))
	ext := incrementalmount.New()
	ms.RegisterExtension(ext)
	if err := ms.NotifyVisibleBoundsChanged(rendering.RectFromLTWH(0, 0, 10, 10)); err != nil {
		t.Fatal(err)
	}
	if ms.MountItemCount() != 0 {
		t.Error("nothing should be mounted")
	}
}

func TestRemovedOutputsReleaseReferences(t *testing.T) {
	f := newColumn(t, 3, 100, rendering.RectFromLTWH(0, 0, width, 100))
	es := f.ms.Delegate().StateFor(f.ext)
	if got := es.OwnedReferences(); !slices.Equal(got, []int64{0, 1, 2, 3}) {
		t.Fatalf("OwnedReferences = %v", got)
	}

	b := rendercore.NewBuilder(f.rec.Host(0), width, 100).
		Add(0, f.rec.Leaf(1), rendering.RectFromLTWH(0, 0, width, 10), nil).
		Add(0, f.rec.Leaf(3), rendering.RectFromLTWH(0, 10, width, 10), nil)
	incrementalmount.Use(b, f.ext)
	if err := f.ms.Mount(mounttest.MustBuild(t, b)); err != nil {
		t.Fatal(err)
	}
	if got := es.OwnedReferences(); !slices.Equal(got, []int64{0, 1, 3}) {
		t.Errorf("OwnedReferences = %v, want 2 released", got)
	}
	if got := f.ms.MountedIDs(); !slices.Equal(got, []int64{0, 1, 3}) {
		t.Errorf("MountedIDs = %v", got)
	}
}

func TestUnmountAllReleasesReferences(t *testing.T) {
	f := newColumn(t, 3, 100, rendering.RectFromLTWH(0, 0, width, 100))
	es := f.ms.Delegate().StateFor(f.ext)
	st := f.state()
	if err := f.ms.UnmountAllItems(); err != nil {
		t.Fatal(err)
	}
	if len(es.OwnedReferences()) != 0 || f.ms.Delegate().ReferenceCount(1) != 0 {
		t.Error("all references should be released")
	}
	if !st.PreviousVisibleRect().IsEmpty() {
		t.Error("previous rect should be reset")
	}
	if f.ms.Delegate().StateFor(f.ext) != nil {
		t.Error("extension should be unregistered")
	}

	// Remounting registers the extension again with fresh state.
	if err := f.ms.Mount(f.tree); err != nil {
		t.Fatal(err)
	}
	if got := f.ms.MountedIDs(); !slices.Equal(got, []int64{0, 1, 2, 3}) {
		t.Errorf("MountedIDs after remount = %v", got)
	}
}

func TestMountedHostWithChildrenStaysMounted(t *testing.T) {
	rec := mounttest.NewRecorder()
	root := mounttest.NewRootHost(width, 100)
	root.SetLocalVisibleRect(rendering.RectFromLTWH(0, 15, width, 50))
	ms := rendercore.NewMountState(root)
	ext := incrementalmount.New()
	// The child overflows its host: only the child is visible.
	b := rendercore.NewBuilder(rec.Host(0), width, 100).
		Add(0, rec.Host(1), rendering.RectFromLTWH(0, 0, width, 10), nil).
		Add(1, rec.Leaf(2), rendering.RectFromLTWH(0, 20, width, 10), nil)
	incrementalmount.Use(b, ext)
	if err := ms.Mount(mounttest.MustBuild(t, b)); err != nil {
		t.Fatal(err)
	}
	es := ms.Delegate().StateFor(ext)
	if es.OwnsReference(1) {
		t.Fatal("host 1 is not visible and should not own a reference yet")
	}
	if got := ms.MountedIDs(); !slices.Equal(got, []int64{0, 1, 2}) {
		t.Fatalf("host should be mounted for its child, got %v", got)
	}

	if err := ms.NotifyVisibleBoundsChanged(rendering.Rect{Left: 1, Top: 15, Right: width, Bottom: 65}); err != nil {
		t.Fatal(err)
	}
	if !es.OwnsReference(1) {
		t.Error("a mounted host with children is mountable")
	}
	if got := ms.MountedIDs(); !slices.Equal(got, []int64{0, 1, 2}) {
		t.Errorf("MountedIDs = %v", got)
	}
}

func TestNestedContentNotifications(t *testing.T) {
	rec := mounttest.NewRecorder()
	root := mounttest.NewRootHost(width, 200)
	root.SetLocalVisibleRect(rendering.RectFromLTWH(0, 0, width, 50))
	ms := rendercore.NewMountState(root)
	ext := incrementalmount.New()
	b := rendercore.NewBuilder(rec.Host(0), width, 200).
		Add(0, rec.NestedLeaf(1), rendering.RectFromLTWH(0, 0, width, 40), nil).
		Add(0, rec.NestedLeaf(2), rendering.RectFromLTWH(0, 100, width, 40), nil)
	incrementalmount.Use(b, ext)
	if err := ms.Mount(mounttest.MustBuild(t, b)); err != nil {
		t.Fatal(err)
	}
	first := mounttest.HandleOf(ms.ContentByID(1))
	if first.Notifications != 0 {
		t.Errorf("mounting should not notify, got %d", first.Notifications)
	}

	// Row 1 stays mounted, row 2 gets mounted this frame.
	ms.NotifyVisibleBoundsChanged(rendering.RectFromLTWH(0, 5, width, 100))
	second := mounttest.HandleOf(ms.ContentByID(2))
	if second == nil {
		t.Fatal("row 2 should be mounted")
	}
	if first.Notifications != 1 || second.Notifications != 0 {
		t.Errorf("notifications = %d/%d, want 1/0", first.Notifications, second.Notifications)
	}

	// Negative space is skipped but nested content still hears about it.
	ms.NotifyVisibleBoundsChanged(rendering.Rect{Left: 0, Top: -30, Right: width, Bottom: -5})
	if first.Notifications != 2 || second.Notifications != 1 {
		t.Errorf("notifications after skip = %d/%d, want 2/1", first.Notifications, second.Notifications)
	}

	// Rebinding after a detach notifies too.
	ms.Detach()
	ms.Attach()
	if first.Notifications != 3 {
		t.Errorf("notifications after attach = %d, want 3", first.Notifications)
	}
}

func TestScrollDownNeedsSizedRootHost(t *testing.T) {
	tests := []struct {
		name   string
		height float64
		want   []int64
	}{
		{"sized", 50, []int64{0, 2, 3, 4}},
		{"unsized", 0, []int64{0, 2}},
	}
	for _, tt := range tests {
		f := newColumn(t, 5, tt.height, rendering.RectFromLTWH(0, 0, width, 20))
		if got := f.ms.MountedIDs(); !slices.Equal(got, []int64{0, 1, 2}) {
			t.Fatalf("%s: MountedIDs after mount = %v", tt.name, got)
		}
		f.scroll(t, rendering.RectFromLTWH(0, 10, width, 20))
		if got := f.ms.MountedIDs(); !slices.Equal(got, tt.want) {
			t.Errorf("%s: MountedIDs after scroll = %v, want %v", tt.name, got, tt.want)
		}
	}
}
