package testing

import (
	"testing"
	"time"

	"github.com/go-drift/rendercore/pkg/rendercore"
	"github.com/go-drift/rendercore/pkg/rendering"
)

const (
	// DefaultTestWidth is the default width of the root host.
	DefaultTestWidth = 800
	// DefaultTestHeight is the default height of the root host.
	DefaultTestHeight = 600
	// PassInterval is the idle time added to the clock after each pass.
	PassInterval = 16 * time.Millisecond
	// DefaultPassCost is the duration every pass of a tester lasts.
	DefaultPassCost = time.Millisecond
)

// TestingT is the subset of *testing.T used by the helpers, allowing test
// doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// MountTester drives a MountState over a recording root host with a pass
// clock, so lifecycle traces and pass statistics are deterministic.
type MountTester struct {
	rec   *Recorder
	root  *rendercore.Host
	ms    *rendercore.MountState
	clock *PassClock
}

// NewMountTester creates a tester with a DefaultTestWidth x DefaultTestHeight
// root host. Call Cleanup when done, or use NewMountTesterWithT instead.
func NewMountTester(opts ...rendercore.Option) *MountTester {
	return NewMountTesterSized(DefaultTestWidth, DefaultTestHeight, opts...)
}

// NewMountTesterSized creates a tester whose root host is width x height and
// fully visible.
func NewMountTesterSized(width, height float64, opts ...rendercore.Option) *MountTester {
	t := &MountTester{
		rec:   NewRecorder(),
		root:  NewRootHost(width, height),
		clock: NewPassClock(DefaultPassCost),
	}
	opts = append([]rendercore.Option{rendercore.WithClock(t.clock.Source())}, opts...)
	t.ms = rendercore.NewMountState(t.root, opts...)
	return t
}

// NewMountTesterWithT creates a tester that unmounts everything via t.Cleanup.
func NewMountTesterWithT(t *testing.T, opts ...rendercore.Option) *MountTester {
	tester := NewMountTester(opts...)
	t.Cleanup(tester.Cleanup)
	return tester
}

// Cleanup unmounts every item.
func (t *MountTester) Cleanup() {
	t.ms.UnmountAllItems()
}

// Recorder returns the recorder the tester's units report to.
func (t *MountTester) Recorder() *Recorder { return t.rec }

// RootHost returns the root host.
func (t *MountTester) RootHost() *rendercore.Host { return t.root }

// MountState returns the mount state under test.
func (t *MountTester) MountState() *rendercore.MountState { return t.ms }

// Clock returns the clock backing pass statistics.
func (t *MountTester) Clock() *PassClock { return t.clock }

// Builder starts a tree rooted at a recording host sized like the root host.
func (t *MountTester) Builder() *rendercore.Builder {
	return rendercore.NewBuilder(t.rec.Host(rendercore.RootHostID), t.root.Width(), t.root.Height())
}

// Mount mounts tree and advances the clock by PassInterval.
func (t *MountTester) Mount(tree *rendercore.RenderTree) error {
	defer t.clock.Advance(PassInterval)
	return t.ms.Mount(tree)
}

// SetVisibleRect reports a new visible rect and advances the clock by
// PassInterval.
func (t *MountTester) SetVisibleRect(rect rendering.Rect) error {
	defer t.clock.Advance(PassInterval)
	return t.ms.NotifyVisibleBoundsChanged(rect)
}

// ScrollTo moves a root-sized visible rect to top.
func (t *MountTester) ScrollTo(top float64) error {
	return t.SetVisibleRect(rendering.RectFromLTWH(0, top, t.root.Width(), t.root.Height()))
}

// Find evaluates a finder against the mounted host hierarchy.
func (t *MountTester) Find(finder Finder) FinderResult {
	return Find(t.ms, finder)
}

// CaptureSnapshot captures the mounted host hierarchy.
func (t *MountTester) CaptureSnapshot() *Snapshot {
	return CaptureSnapshot(t.ms)
}
