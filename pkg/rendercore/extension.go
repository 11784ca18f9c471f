package rendercore

import (
	"maps"
	"slices"

	"github.com/go-drift/rendercore/pkg/rendering"
)

// MountExtension observes the mount lifecycle of a MountState.
//
// The isMountingPhase argument of reference operations selects whether an
// ownership change takes effect immediately (false) or is left to the mount
// loop that is about to run (true).
type MountExtension interface {
	// CreateState returns the per-MountState state of the extension.
	CreateState() any
	// CanPreventMount reports whether the extension takes part in reference
	// counting. Reference counts gate mounting only if some registered
	// extension returns true.
	CanPreventMount() bool

	BeforeMount(es *ExtensionState, tree *RenderTree, input any, localVisibleRect rendering.Rect) error
	AfterMount(es *ExtensionState) error
	OnVisibleBoundsChanged(es *ExtensionState, localVisibleRect rendering.Rect) error
	BeforeMountItem(es *ExtensionState, node *RenderTreeNode, index int) error

	OnMountItem(es *ExtensionState, unit *RenderUnit, content Content, layoutData any)
	OnUnmountItem(es *ExtensionState, unit *RenderUnit, content Content, layoutData any)
	OnBindItem(es *ExtensionState, unit *RenderUnit, content Content, layoutData any)
	OnUnbindItem(es *ExtensionState, unit *RenderUnit, content Content, layoutData any)
	OnBoundsAppliedToItem(es *ExtensionState, node *RenderTreeNode, content Content)
	OnUpdateItem(es *ExtensionState, prev *RenderUnit, prevLayoutData any, next *RenderUnit, nextLayoutData any, content Content)

	// OnUnbind and OnUnmount run when the MountState drops all of its
	// content.
	OnUnbind(es *ExtensionState)
	OnUnmount(es *ExtensionState)
}

// BaseExtension implements every MountExtension callback as a no-op.
// Embed it and override what you need.
type BaseExtension struct{}

func (BaseExtension) CreateState() any      { return nil }
func (BaseExtension) CanPreventMount() bool { return false }

func (BaseExtension) BeforeMount(*ExtensionState, *RenderTree, any, rendering.Rect) error {
	return nil
}
func (BaseExtension) AfterMount(*ExtensionState) error                             { return nil }
func (BaseExtension) OnVisibleBoundsChanged(*ExtensionState, rendering.Rect) error { return nil }
func (BaseExtension) BeforeMountItem(*ExtensionState, *RenderTreeNode, int) error  { return nil }

func (BaseExtension) OnMountItem(*ExtensionState, *RenderUnit, Content, any)          {}
func (BaseExtension) OnUnmountItem(*ExtensionState, *RenderUnit, Content, any)        {}
func (BaseExtension) OnBindItem(*ExtensionState, *RenderUnit, Content, any)           {}
func (BaseExtension) OnUnbindItem(*ExtensionState, *RenderUnit, Content, any)         {}
func (BaseExtension) OnBoundsAppliedToItem(*ExtensionState, *RenderTreeNode, Content) {}
func (BaseExtension) OnUnbind(*ExtensionState)                                        {}
func (BaseExtension) OnUnmount(*ExtensionState)                                       {}

func (BaseExtension) OnUpdateItem(*ExtensionState, *RenderUnit, any, *RenderUnit, any, Content) {}

// ExtensionState is the state one extension keeps for one MountState,
// together with the mount references the extension owns.
type ExtensionState struct {
	extension MountExtension
	delegate  *MountDelegate
	state     any
	owned     map[int64]struct{}
}

// Extension returns the extension owning the state.
func (es *ExtensionState) Extension() MountExtension { return es.extension }

// State returns the value created by the extension's CreateState.
func (es *ExtensionState) State() any { return es.state }

// OwnsReference reports whether the extension holds a reference for id.
func (es *ExtensionState) OwnsReference(id int64) bool {
	_, ok := es.owned[id]
	return ok
}

// OwnedReferences returns the ids the extension holds references for, sorted.
func (es *ExtensionState) OwnedReferences() []int64 {
	return slices.Sorted(maps.Keys(es.owned))
}

// AcquireMountReference takes a reference for id. Acquiring a reference the
// extension already owns does nothing.
func (es *ExtensionState) AcquireMountReference(id int64, isMountingPhase bool) error {
	if es.OwnsReference(id) {
		return nil
	}
	es.owned[id] = struct{}{}
	return es.delegate.acquireMountRef(id, isMountingPhase)
}

// ReleaseMountReference gives up the reference for id. Releasing a reference
// the extension does not own does nothing.
func (es *ExtensionState) ReleaseMountReference(id int64, isMountingPhase bool) error {
	if !es.OwnsReference(id) {
		return nil
	}
	delete(es.owned, id)
	return es.delegate.releaseMountRef(id, isMountingPhase)
}

// ReleaseAllAcquiredReferences drops every owned reference. Content is left
// in place for the next mount pass to reconcile.
func (es *ExtensionState) ReleaseAllAcquiredReferences() {
	if len(es.owned) == 0 {
		return
	}
	ids := es.OwnedReferences()
	clear(es.owned)
	for _, id := range ids {
		// Deferred releases never touch content, so they cannot fail.
		_ = es.delegate.releaseMountRef(id, true)
	}
}

// ContentByID returns the mounted content of id, or nil.
func (es *ExtensionState) ContentByID(id int64) Content {
	return es.delegate.target.ContentByID(id)
}

// RootHost returns the root host of the MountState.
func (es *ExtensionState) RootHost() *Host {
	return es.delegate.target.rootHost
}

// NotifyVisibleBoundsChanged forwards a visible bounds change to content
// hosting a nested render tree. Inside a notify section the notification is
// deferred until the section ends.
func (es *ExtensionState) NotifyVisibleBoundsChanged(content Content) {
	es.delegate.notifyVisibleBoundsChangedForItem(content)
}
