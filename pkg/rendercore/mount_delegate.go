package rendercore

import (
	"github.com/go-drift/rendercore/pkg/rendering"
)

// MountDelegate dispatches lifecycle callbacks to registered extensions and
// keeps the shared mount reference counts.
type MountDelegate struct {
	target    *MountState
	states    []*ExtensionState
	refCounts map[int64]int

	referenceCounting bool

	notifyDepth   int
	pendingNotify []Content
}

func newMountDelegate(target *MountState) *MountDelegate {
	return &MountDelegate{
		target:    target,
		refCounts: make(map[int64]int),
	}
}

// ExtensionStates returns the registered extension states in registration order.
func (d *MountDelegate) ExtensionStates() []*ExtensionState {
	return d.states
}

// StateFor returns the state of ext, or nil when ext is not registered.
func (d *MountDelegate) StateFor(ext MountExtension) *ExtensionState {
	for _, es := range d.states {
		if es.extension == ext {
			return es
		}
	}
	return nil
}

// ReferenceCount returns the number of extensions holding a reference for id.
func (d *MountDelegate) ReferenceCount(id int64) int {
	return d.refCounts[id]
}

// ReferenceCountingEnabled reports whether some registered extension can
// prevent mounting.
func (d *MountDelegate) ReferenceCountingEnabled() bool {
	return d.referenceCounting
}

func (d *MountDelegate) registerExtensions(inputs []ExtensionInput) {
	for _, in := range inputs {
		d.registerExtension(in.Extension)
	}
}

func (d *MountDelegate) registerExtension(ext MountExtension) *ExtensionState {
	if es := d.StateFor(ext); es != nil {
		return es
	}
	es := &ExtensionState{
		extension: ext,
		delegate:  d,
		state:     ext.CreateState(),
		owned:     make(map[int64]struct{}),
	}
	d.states = append(d.states, es)
	d.referenceCounting = d.referenceCounting || ext.CanPreventMount()
	return es
}

func (d *MountDelegate) unregisterAllExtensions() {
	d.states = nil
	d.referenceCounting = false
	clear(d.refCounts)
}

func (d *MountDelegate) acquireMountRef(id int64, isMountingPhase bool) error {
	d.refCounts[id]++
	if isMountingPhase {
		return nil
	}
	return d.target.notifyMount(id)
}

func (d *MountDelegate) releaseMountRef(id int64, isMountingPhase bool) error {
	wasLocked := d.refCounts[id] > 0
	if wasLocked {
		d.refCounts[id]--
	}
	if d.refCounts[id] <= 0 {
		delete(d.refCounts, id)
	}
	if wasLocked && d.refCounts[id] == 0 && !isMountingPhase {
		return d.target.notifyUnmount(id)
	}
	return nil
}

func (d *MountDelegate) hasAcquiredRef(id int64) bool {
	return d.refCounts[id] > 0
}

// maybeLockForMount gives every extension a chance to take a reference for
// the node and reports whether the node may be mounted.
func (d *MountDelegate) maybeLockForMount(node *RenderTreeNode, index int) (bool, error) {
	if !d.referenceCounting {
		return true, nil
	}
	for _, es := range d.states {
		if err := es.extension.BeforeMountItem(es, node, index); err != nil {
			return false, err
		}
	}
	return d.hasAcquiredRef(node.unit.ID), nil
}

func (d *MountDelegate) beforeMount(tree *RenderTree, localVisibleRect rendering.Rect) error {
	for _, in := range tree.Extensions() {
		es := d.StateFor(in.Extension)
		if es == nil {
			continue
		}
		if err := es.extension.BeforeMount(es, tree, in.Input, localVisibleRect); err != nil {
			return err
		}
	}
	return nil
}

func (d *MountDelegate) afterMount() error {
	for _, es := range d.states {
		if err := es.extension.AfterMount(es); err != nil {
			return err
		}
	}
	return nil
}

func (d *MountDelegate) notifyVisibleBoundsChanged(rect rendering.Rect) error {
	for _, es := range d.states {
		if err := es.extension.OnVisibleBoundsChanged(es, rect); err != nil {
			return err
		}
	}
	return nil
}

func (d *MountDelegate) onMountItem(unit *RenderUnit, content Content, layoutData any) {
	for _, es := range d.states {
		es.extension.OnMountItem(es, unit, content, layoutData)
	}
}

func (d *MountDelegate) onUnmountItem(unit *RenderUnit, content Content, layoutData any) {
	for _, es := range d.states {
		es.extension.OnUnmountItem(es, unit, content, layoutData)
	}
}

func (d *MountDelegate) onBindItem(unit *RenderUnit, content Content, layoutData any) {
	for _, es := range d.states {
		es.extension.OnBindItem(es, unit, content, layoutData)
	}
}

func (d *MountDelegate) onUnbindItem(unit *RenderUnit, content Content, layoutData any) {
	for _, es := range d.states {
		es.extension.OnUnbindItem(es, unit, content, layoutData)
	}
}

func (d *MountDelegate) onBoundsAppliedToItem(node *RenderTreeNode, content Content) {
	for _, es := range d.states {
		es.extension.OnBoundsAppliedToItem(es, node, content)
	}
}

func (d *MountDelegate) onUpdateItem(prev *RenderUnit, prevLayoutData any, next *RenderUnit, nextLayoutData any, content Content) {
	for _, es := range d.states {
		es.extension.OnUpdateItem(es, prev, prevLayoutData, next, nextLayoutData, content)
	}
}

func (d *MountDelegate) unBind() {
	for _, es := range d.states {
		es.extension.OnUnbind(es)
	}
}

func (d *MountDelegate) unMount() {
	for _, es := range d.states {
		es.extension.OnUnmount(es)
	}
}

// startNotifyVisibleBoundsChangedSection defers nested content notifications
// until the matching end call. Sections nest.
func (d *MountDelegate) startNotifyVisibleBoundsChangedSection() {
	d.notifyDepth++
}

func (d *MountDelegate) endNotifyVisibleBoundsChangedSection() {
	if d.notifyDepth == 0 {
		return
	}
	d.notifyDepth--
	if d.notifyDepth > 0 || len(d.pendingNotify) == 0 {
		return
	}
	pending := d.pendingNotify
	d.pendingNotify = nil
	for _, c := range pending {
		notifyContent(c)
	}
}

// resetNotifySections drops sections left open by a pass that panicked.
func (d *MountDelegate) resetNotifySections() {
	d.notifyDepth = 0
	d.pendingNotify = nil
}

func (d *MountDelegate) notifyVisibleBoundsChangedForItem(content Content) {
	if d.notifyDepth == 0 {
		notifyContent(content)
		return
	}
	for _, c := range d.pendingNotify {
		if c == content {
			return
		}
	}
	d.pendingNotify = append(d.pendingNotify, content)
}

func notifyContent(c Content) {
	if l := visibleBoundsListenerOf(c); l != nil {
		l.NotifyVisibleBoundsChanged()
	}
}
