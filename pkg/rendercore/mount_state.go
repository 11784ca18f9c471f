package rendercore

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/go-drift/rendercore/pkg/errors"
	"github.com/go-drift/rendercore/pkg/rendering"
	"github.com/go-drift/rendercore/pkg/telemetry"
)

// MountState owns the content mounted for successive render trees under one
// root host.
type MountState struct {
	id       string
	rootHost *Host
	items    map[int64]*MountItem
	tree     *RenderTree
	delegate *MountDelegate
	pools    *ContentPools

	isMounting          bool
	needsRemount        bool
	ensureParentMounted bool
	isUIThread          func() bool

	log      zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	recorder PassRecorder
	now      func() time.Time
	pass     PassStats
}

// NewMountState creates a MountState mounting into rootHost.
//
// The mount state never sizes rootHost. Callers must give it bounds with
// Host.SetBounds before scrolling: incremental mount only walks outputs
// entering or leaving through the bottom edge while the visible rect ends
// above the root host's height, so an unsized root host never mounts rows
// scrolled in from below.
func NewMountState(rootHost *Host, opts ...Option) *MountState {
	m := &MountState{
		id:                  uuid.NewString(),
		rootHost:            rootHost,
		items:               make(map[int64]*MountItem),
		ensureParentMounted: true,
		log:                 zerolog.Nop(),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pools == nil {
		m.pools = NewContentPools(nil)
	}
	m.pools.SetMetrics(m.metrics)
	m.log = m.log.With().Str("mount_state", m.id).Logger()
	m.delegate = newMountDelegate(m)
	return m
}

// ID returns the instance id used in logs.
func (m *MountState) ID() string { return m.id }

// RootHost returns the host the tree is mounted into.
func (m *MountState) RootHost() *Host { return m.rootHost }

// Delegate returns the extension delegate.
func (m *MountState) Delegate() *MountDelegate { return m.delegate }

// RenderTree returns the last mounted render tree.
func (m *MountState) RenderTree() *RenderTree { return m.tree }

// NeedsRemount reports whether the next Mount must run even for the current tree.
func (m *MountState) NeedsRemount() bool { return m.needsRemount }

// IsMounting reports whether a mount pass is in progress.
func (m *MountState) IsMounting() bool { return m.isMounting }

// RegisterExtension registers ext outside of any render tree and returns its
// state.
func (m *MountState) RegisterExtension(ext MountExtension) *ExtensionState {
	return m.delegate.registerExtension(ext)
}

// Mount reconciles the mounted content with tree.
//
// Mounting the tree that is already mounted does nothing unless
// UnmountAllItems ran in between.
//
// A panic raised by a binder or an extension aborts the pass and is returned
// as a KindPanic error.
func (m *MountState) Mount(tree *RenderTree) (err error) {
	const op = "MountState.Mount"
	defer errors.RecoverInto(op, &err)
	if err := m.assertUIThread(op); err != nil {
		return err
	}
	if tree == nil {
		return m.fail(op, errors.KindPrecondition, -1, errors.ErrNilTree)
	}
	if m.isMounting {
		return m.fail(op, errors.KindPrecondition, -1, errors.ErrAlreadyMounting)
	}

	previous := m.tree
	if !m.updateRenderTree(tree) {
		return nil
	}

	m.beginPass("mount")
	m.tracer.BeginSection(op, attribute.Int("render_units", tree.MountableOutputCount()))
	defer m.tracer.EndSection()

	m.isMounting = true
	defer func() {
		m.isMounting = false
		m.delegate.resetNotifySections()
	}()

	if err := m.delegate.beforeMount(tree, m.rootHost.LocalVisibleRect()); err != nil {
		return err
	}
	if err := m.prepareMount(previous); err != nil {
		return err
	}
	if err := m.mountLoop(previous); err != nil {
		return err
	}

	m.needsRemount = false
	m.isMounting = false

	if err := m.delegate.afterMount(); err != nil {
		return err
	}
	m.endPass()
	return nil
}

// updateRenderTree installs tree and registers its extensions. It reports
// false when nothing has to be mounted.
func (m *MountState) updateRenderTree(tree *RenderTree) bool {
	if tree == m.tree && !m.needsRemount {
		return false
	}
	switch {
	case m.tree == nil || m.needsRemount:
		m.delegate.registerExtensions(tree.Extensions())
	case extensionsChanged(m.tree.Extensions(), tree.Extensions()):
		m.unregisterAllExtensions()
		m.delegate.registerExtensions(tree.Extensions())
	}
	m.tree = tree
	return true
}

func extensionsChanged(prev, next []ExtensionInput) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		if prev[i].Extension != next[i].Extension {
			return true
		}
	}
	return false
}

func (m *MountState) mountLoop(previous *RenderTree) error {
	const op = "MountState.Mount"
	var processLog *strings.Builder
	if !m.ensureParentMounted {
		processLog = &strings.Builder{}
		processLog.WriteString("Start of mount loop log:\n")
	}

	recovered := false
	for i, n := 1, m.tree.MountableOutputCount(); i < n; i++ {
		node := m.tree.NodeAt(i)
		unit := node.unit

		mountable, err := m.isMountable(node, i)
		if err != nil {
			return err
		}
		current := m.items[unit.ID]

		if current != nil {
			if desync := checkDesync(i, current.RenderUnit(), unit); desync != nil {
				if recovered {
					return m.fail(op, errors.KindDesync, unit.ID, desync)
				}
				errors.Report(&errors.MountError{Op: op, Kind: errors.KindDesync, ID: unit.ID, Err: desync})
				m.log.Warn().Err(desync).Int64("id", unit.ID).Msg("mount item map out of sync, rebuilding")
				m.metrics.DesyncRecovered()
				m.pass.Recoveries++
				if err := m.recreateMountedItemMap(previous); err != nil {
					return err
				}
				recovered = true
				// Restart from the first non-root node.
				i = 0
				continue
			}
		}

		if processLog != nil {
			fmt.Fprintf(processLog, "Processing index %d: isMountable = %t, isMounted = %t\n", i, mountable, current != nil)
		}

		switch {
		case !mountable:
			if current != nil {
				if err := m.unmountItemRecursively(current.node); err != nil {
					return err
				}
			}
		case current == nil:
			if err := m.mountRenderUnit(node, processLog); err != nil {
				return err
			}
		default:
			m.updateMountItemIfNeeded(node, current)
		}
	}
	return nil
}

func checkDesync(index int, current, next *RenderUnit) *errors.DesyncError {
	if current.ID == next.ID && current.Type == next.Type {
		return nil
	}
	return &errors.DesyncError{
		Index:       index,
		CurrentID:   current.ID,
		NewID:       next.ID,
		CurrentType: string(current.Type),
		NewType:     string(next.Type),
	}
}

// isMountable reports whether node should be mounted in this pass.
func (m *MountState) isMountable(node *RenderTreeNode, index int) (bool, error) {
	return m.delegate.maybeLockForMount(node, index)
}

// recreateMountedItemMap unmounts every non-root item so that the mount loop
// can start over from a map holding only the root.
func (m *MountState) recreateMountedItemMap(previous *RenderTree) error {
	var root *MountItem
	for _, id := range slices.Sorted(maps.Keys(m.items)) {
		item, ok := m.items[id]
		if !ok {
			// Already unmounted along with an ancestor.
			continue
		}
		switch {
		case item.RenderUnit().ID == RootHostID:
			root = item
			delete(m.items, id)
		case item.RenderUnit().ID != id:
			// The item sits under the wrong key. Unmount through the node the
			// key belongs to in the previous tree.
			if previous != nil {
				if idx := previous.NodeIndex(id); idx >= 0 {
					if err := m.unmountItemRecursively(previous.NodeAt(idx)); err != nil {
						return err
					}
					continue
				}
			}
			delete(m.items, id)
		default:
			if err := m.unmountItemRecursively(item.node); err != nil {
				return err
			}
		}
	}
	if root != nil {
		m.items[RootHostID] = root
	}
	return nil
}

func (m *MountState) prepareMount(previous *RenderTree) error {
	if err := m.unmountOrMoveOldItems(previous); err != nil {
		return err
	}
	rootNode := m.tree.Root()
	if rootItem := m.items[RootHostID]; rootItem != nil {
		m.updateMountItemIfNeeded(rootNode, rootItem)
	} else {
		m.mountRootItem(rootNode)
	}
	return nil
}

// unmountOrMoveOldItems unmounts items that left the tree or changed host,
// and moves items whose position inside the same host changed.
func (m *MountState) unmountOrMoveOldItems(previous *RenderTree) error {
	if previous == nil {
		return nil
	}
	for i := 0; i < previous.MountableOutputCount(); i++ {
		id := previous.NodeAt(i).unit.ID
		oldItem := m.items[id]
		if oldItem == nil {
			continue
		}
		newPosition := m.tree.NodeIndex(id)
		if newPosition < 0 {
			if err := m.unmountItemRecursively(oldItem.node); err != nil {
				return err
			}
			continue
		}

		node := m.tree.NodeAt(newPosition)
		newHostID := RootHostID
		if parent := node.Parent(); parent != nil {
			newHostID = parent.unit.ID
		}
		var newHost *Host
		if hostItem := m.items[newHostID]; hostItem != nil {
			newHost, _ = hostItem.content.(*Host)
		}

		switch {
		case oldItem.host != newHost:
			if err := m.unmountItemRecursively(oldItem.node); err != nil {
				return err
			}
		case oldItem.node.positionInParent != node.positionInParent:
			oldItem.host.MoveItem(oldItem, oldItem.node.positionInParent, node.positionInParent)
			m.pass.Moved++
			m.metrics.ItemMoved()
		}
	}
	return nil
}

func (m *MountState) mountRootItem(rootNode *RenderTreeNode) {
	m.mountRenderUnitToContent(rootNode, m.rootHost)
	item := &MountItem{node: rootNode, host: m.rootHost, content: m.rootHost}
	m.items[RootHostID] = item
	m.bindRenderUnitToContent(item)
	m.pass.Mounted++
	m.metrics.ItemMounted(string(rootNode.unit.Type))
}

func (m *MountState) mountRenderUnit(node *RenderTreeNode, processLog *strings.Builder) error {
	const op = "MountState.mountRenderUnit"
	unit := node.unit
	if unit.ID == RootHostID {
		m.mountRootItem(node)
		return nil
	}

	m.tracer.BeginSection(op, attribute.Int64("id", unit.ID), attribute.String("content_type", string(unit.Type)))
	defer m.tracer.EndSection()

	hostNode := node.Parent()
	if hostNode == nil {
		return m.fail(op, errors.KindInvariant, unit.ID, fmt.Errorf("render unit %d has no parent", unit.ID))
	}
	if err := m.maybeEnsureParentIsMounted(node, hostNode, processLog); err != nil {
		return err
	}

	parentItem := m.items[hostNode.unit.ID]
	host, ok := parentItem.content.(*Host)
	if !ok {
		return m.fail(op, errors.KindInvariant, unit.ID, &errors.ParentContentTypeError{
			ParentID:    hostNode.unit.ID,
			ParentType:  string(hostNode.unit.Type),
			ContentKind: contentKindOf(parentItem.content),
			ChildID:     unit.ID,
			ChildType:   string(unit.Type),
		})
	}

	content := m.pools.Acquire(unit)

	m.delegate.startNotifyVisibleBoundsChangedSection()
	m.mountRenderUnitToContent(node, content)
	item := &MountItem{node: node, host: host, content: content}
	m.items[unit.ID] = item
	host.Mount(node.positionInParent, item)
	m.bindRenderUnitToContent(item)
	applyBoundsToMountContent(node, content)
	m.delegate.onBoundsAppliedToItem(node, content)
	m.delegate.endNotifyVisibleBoundsChangedSection()

	m.pass.Mounted++
	m.metrics.ItemMounted(string(unit.Type))
	m.log.Debug().Int64("id", unit.ID).Str("content_type", string(unit.Type)).Int("position", node.positionInParent).Msg("mounted")
	return nil
}

func (m *MountState) maybeEnsureParentIsMounted(node, hostNode *RenderTreeNode, processLog *strings.Builder) error {
	if _, mounted := m.items[hostNode.unit.ID]; mounted {
		return nil
	}
	if m.ensureParentMounted {
		return m.mountRenderUnit(hostNode, processLog)
	}
	log := ""
	if processLog != nil {
		log = processLog.String()
	}
	return m.fail("MountState.mountRenderUnit", errors.KindHostNotMounted, node.unit.ID, &errors.HostNotMountedError{
		ChildID:    node.unit.ID,
		ChildType:  string(node.unit.Type),
		ParentID:   hostNode.unit.ID,
		ParentType: string(hostNode.unit.Type),
		Parent:     hostNode.DebugString(),
		Child:      node.DebugString(),
		Tree:       m.tree.DebugString(),
		ProcessLog: log,
	})
}

func (m *MountState) unmountItemRecursively(node *RenderTreeNode) error {
	const op = "MountState.unmountItemRecursively"
	unit := node.unit
	item := m.items[unit.ID]
	if item == nil {
		return nil
	}
	if unit.ID == RootHostID {
		m.unmountRootItem()
		return nil
	}

	delete(m.items, unit.ID)
	content := item.content

	if node.ChildCount() > 0 {
		for i := node.ChildCount() - 1; i >= 0; i-- {
			if err := m.unmountItemRecursively(node.ChildAt(i)); err != nil {
				return err
			}
		}
		if host, ok := content.(*Host); ok && host.MountItemCount() > 0 {
			return m.fail(op, errors.KindInvariant, unit.ID, &errors.LeftoverChildrenError{
				HostID: unit.ID,
				Count:  host.MountItemCount(),
			})
		}
	}

	if item.bound {
		m.unbindRenderUnitFromContent(item)
	}
	item.host.Unmount(node.positionInParent, item)
	m.unmountRenderUnitFromContent(item.node, content)
	m.pools.Release(item.node.unit, content)

	m.pass.Unmounted++
	m.metrics.ItemUnmounted(string(unit.Type))
	m.log.Debug().Int64("id", unit.ID).Str("content_type", string(unit.Type)).Msg("unmounted")
	return nil
}

func (m *MountState) unmountRootItem() {
	item := m.items[RootHostID]
	if item == nil {
		return
	}
	if item.bound {
		m.unbindRenderUnitFromContent(item)
	}
	delete(m.items, RootHostID)
	rootNode := item.node
	if m.tree != nil {
		rootNode = m.tree.Root()
	}
	m.unmountRenderUnitFromContent(rootNode, item.content)
	m.pass.Unmounted++
	m.metrics.ItemUnmounted(string(rootNode.unit.Type))
}

func (m *MountState) updateMountItemIfNeeded(node *RenderTreeNode, item *MountItem) {
	unit := node.unit
	prevNode := item.node
	prevUnit := prevNode.unit
	content := item.content

	item.update(node)

	if prevUnit != unit {
		unit.updateBinders(content, prevUnit, prevNode.layoutData, node.layoutData, item.bound)
		m.pass.Updated++
		m.metrics.ItemUpdated(string(unit.Type))
	}
	item.bound = true

	m.delegate.startNotifyVisibleBoundsChangedSection()
	m.delegate.onUpdateItem(prevUnit, prevNode.layoutData, unit, node.layoutData, content)
	if unit.ID != RootHostID {
		applyBoundsToMountContent(node, content)
		m.delegate.onBoundsAppliedToItem(node, content)
	}
	m.delegate.endNotifyVisibleBoundsChangedSection()
}

func (m *MountState) mountRenderUnitToContent(node *RenderTreeNode, content Content) {
	node.unit.mountBinders(content, node.layoutData)
	m.delegate.onMountItem(node.unit, content, node.layoutData)
}

func (m *MountState) unmountRenderUnitFromContent(node *RenderTreeNode, content Content) {
	m.delegate.onUnmountItem(node.unit, content, node.layoutData)
	node.unit.unmountBinders(content, node.layoutData)
}

func (m *MountState) bindRenderUnitToContent(item *MountItem) {
	node := item.node
	node.unit.attachBinders(item.content, node.layoutData)
	m.delegate.onBindItem(node.unit, item.content, node.layoutData)
	item.bound = true
}

func (m *MountState) unbindRenderUnitFromContent(item *MountItem) {
	node := item.node
	m.delegate.onUnbindItem(node.unit, item.content, node.layoutData)
	node.unit.detachBinders(item.content, node.layoutData)
	item.bound = false
}

// NotifyMount mounts the render unit with id if it is not mounted yet.
func (m *MountState) NotifyMount(id int64) (err error) {
	defer errors.RecoverInto("MountState.NotifyMount", &err)
	if err := m.assertUIThread("MountState.NotifyMount"); err != nil {
		return err
	}
	return m.notifyMount(id)
}

func (m *MountState) notifyMount(id int64) error {
	if _, mounted := m.items[id]; mounted || m.tree == nil {
		return nil
	}
	idx := m.tree.NodeIndex(id)
	if idx < 0 {
		return m.fail("MountState.NotifyMount", errors.KindPrecondition, id,
			fmt.Errorf("render unit %d is not part of the current render tree", id))
	}
	return m.mountRenderUnit(m.tree.NodeAt(idx), nil)
}

// NotifyUnmount unmounts the render unit with id and its descendants.
func (m *MountState) NotifyUnmount(id int64) (err error) {
	defer errors.RecoverInto("MountState.NotifyUnmount", &err)
	if err := m.assertUIThread("MountState.NotifyUnmount"); err != nil {
		return err
	}
	return m.notifyUnmount(id)
}

func (m *MountState) notifyUnmount(id int64) error {
	item := m.items[id]
	if item == nil {
		return nil
	}
	return m.unmountItemRecursively(item.node)
}

// NotifyVisibleBoundsChanged tells extensions that the visible part of the
// root host changed to rect.
func (m *MountState) NotifyVisibleBoundsChanged(rect rendering.Rect) (err error) {
	const op = "MountState.NotifyVisibleBoundsChanged"
	defer errors.RecoverInto(op, &err)
	if err := m.assertUIThread(op); err != nil {
		return err
	}
	if m.isMounting {
		return m.fail(op, errors.KindPrecondition, -1, errors.ErrAlreadyMounting)
	}
	m.rootHost.SetLocalVisibleRect(rect)

	m.beginPass("visible-bounds")
	m.tracer.BeginSection(op)
	defer m.tracer.EndSection()

	if err := m.delegate.notifyVisibleBoundsChanged(rect); err != nil {
		return err
	}
	m.endPass()
	return nil
}

// Attach binds every mounted item that is not bound.
func (m *MountState) Attach() error {
	if err := m.assertUIThread("MountState.Attach"); err != nil {
		return err
	}
	if m.tree == nil {
		return nil
	}
	for i := 0; i < m.tree.MountableOutputCount(); i++ {
		item := m.items[m.tree.NodeAt(i).unit.ID]
		if item == nil || item.bound {
			continue
		}
		m.bindRenderUnitToContent(item)
		if leaf, ok := item.content.(*Leaf); ok {
			leaf.applyBounds(item.node.bounds)
		}
	}
	return nil
}

// Detach unbinds every bound item and tells extensions to unbind.
func (m *MountState) Detach() error {
	if err := m.assertUIThread("MountState.Detach"); err != nil {
		return err
	}
	if m.tree == nil {
		return nil
	}
	for i := 0; i < m.tree.MountableOutputCount(); i++ {
		item := m.items[m.tree.NodeAt(i).unit.ID]
		if item == nil || !item.bound {
			continue
		}
		m.unbindRenderUnitFromContent(item)
	}
	m.delegate.unBind()
	return nil
}

// UnmountAllItems unmounts every item, root last, and unregisters all
// extensions. The next Mount remounts even the current tree.
func (m *MountState) UnmountAllItems() (err error) {
	const op = "MountState.UnmountAllItems"
	defer errors.RecoverInto(op, &err)
	if err := m.assertUIThread(op); err != nil {
		return err
	}
	if m.isMounting {
		return m.fail(op, errors.KindPrecondition, -1, errors.ErrAlreadyMounting)
	}
	if m.tree == nil {
		return nil
	}
	if _, mounted := m.items[RootHostID]; !mounted {
		return nil
	}

	m.beginPass("unmount-all")
	m.tracer.BeginSection(op)
	defer m.tracer.EndSection()

	root := m.tree.Root()
	for i := root.ChildCount() - 1; i >= 0; i-- {
		if err := m.unmountItemRecursively(root.ChildAt(i)); err != nil {
			return err
		}
	}
	m.unmountRootItem()
	m.unregisterAllExtensions()
	m.needsRemount = true
	m.endPass()
	return nil
}

func (m *MountState) unregisterAllExtensions() {
	m.delegate.unBind()
	m.delegate.unMount()
	m.delegate.unregisterAllExtensions()
}

// MountItemCount returns the number of mounted items, root included.
func (m *MountState) MountItemCount() int { return len(m.items) }

// RenderUnitCount returns the number of nodes in the current tree.
func (m *MountState) RenderUnitCount() int {
	if m.tree == nil {
		return 0
	}
	return m.tree.MountableOutputCount()
}

// MountItemAt returns the item mounted for the node at index, or nil.
func (m *MountState) MountItemAt(index int) *MountItem {
	if m.tree == nil || index < 0 || index >= m.tree.MountableOutputCount() {
		return nil
	}
	return m.items[m.tree.NodeAt(index).unit.ID]
}

// ContentAt returns the content mounted for the node at index, or nil.
func (m *MountState) ContentAt(index int) Content {
	if item := m.MountItemAt(index); item != nil {
		return item.content
	}
	return nil
}

// MountItemByID returns the item mounted for id, or nil.
func (m *MountState) MountItemByID(id int64) *MountItem {
	return m.items[id]
}

// ContentByID returns the content mounted for id, or nil.
func (m *MountState) ContentByID(id int64) Content {
	if item := m.items[id]; item != nil {
		return item.content
	}
	return nil
}

// IsRootItem reports whether the node at index is mounted as the root.
func (m *MountState) IsRootItem(index int) bool {
	item := m.MountItemAt(index)
	return item != nil && item == m.items[RootHostID]
}

// RootItem returns the mounted root item, or nil.
func (m *MountState) RootItem() *MountItem {
	return m.items[RootHostID]
}

// MountedIDs returns the ids of all mounted items, sorted.
func (m *MountState) MountedIDs() []int64 {
	return slices.Sorted(maps.Keys(m.items))
}

// Hosts returns the mounted hosts ordered by render unit id.
func (m *MountState) Hosts() []*Host {
	var hosts []*Host
	for _, id := range m.MountedIDs() {
		if h, ok := m.items[id].content.(*Host); ok {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func (m *MountState) assertUIThread(op string) error {
	if m.isUIThread != nil && !m.isUIThread() {
		return m.fail(op, errors.KindThread, -1, errors.ErrWrongThread)
	}
	return nil
}

func (m *MountState) fail(op string, kind errors.ErrorKind, id int64, err error) error {
	me := errors.Fatal(op, kind, id, err)
	m.log.Error().Err(err).Str("op", op).Str("kind", kind.String()).Msg("mount failed")
	return me
}

func (m *MountState) beginPass(op string) {
	m.pass = PassStats{StateID: m.id, Op: op, Start: m.now()}
}

func (m *MountState) endPass() {
	m.pass.Duration = m.now().Sub(m.pass.Start)
	m.pass.MountedItems = len(m.items)
	m.metrics.ObservePass(m.pass.Op, m.pass.Duration)
	m.log.Debug().
		Str("pass", m.pass.Op).
		Dur("duration", m.pass.Duration).
		Int("mounted", m.pass.Mounted).
		Int("unmounted", m.pass.Unmounted).
		Int("updated", m.pass.Updated).
		Int("moved", m.pass.Moved).
		Msg("pass complete")
	if m.recorder != nil {
		m.recorder.RecordPass(m.pass)
	}
}
