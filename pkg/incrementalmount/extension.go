package incrementalmount

import (
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/go-drift/rendercore/pkg/config"
	"github.com/go-drift/rendercore/pkg/errors"
	"github.com/go-drift/rendercore/pkg/rendercore"
	"github.com/go-drift/rendercore/pkg/rendering"
	"github.com/go-drift/rendercore/pkg/telemetry"
)

// Extension mounts only the outputs that intersect the visible rect of the
// root host. It holds one mount reference per output it wants mounted.
//
// The render tree must carry an *Input for the extension:
//
//	b.AddExtension(ext, incrementalmount.InputFromRenderTree(tree))
//
// Vertical scrolls only mount outputs entering from below while the visible
// rect ends above the root host's height, so the root host must be sized.
type Extension struct {
	rendercore.BaseExtension

	skipNegativeSpace bool
	log               zerolog.Logger
	metrics           *telemetry.Metrics
	tracer            *telemetry.Tracer
}

// Option configures an Extension.
type Option func(*Extension)

// WithSkipNegativeCoordinates skips incremental passes for visible rects
// lying entirely above or left of the origin. Enabled by default.
func WithSkipNegativeCoordinates(skip bool) Option {
	return func(e *Extension) { e.skipNegativeSpace = skip }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Extension) { e.log = l.With().Str("extension", "incremental_mount").Logger() }
}

// WithMetrics records acquire and release counts.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Extension) { e.metrics = m }
}

// WithTracer records the extension callbacks as trace sections.
func WithTracer(t *telemetry.Tracer) Option {
	return func(e *Extension) { e.tracer = t }
}

// OptionsFromConfig translates the mount configuration into options.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{WithSkipNegativeCoordinates(cfg.Mount.SkipNegativeCoordinates)}
}

// New creates an incremental mount extension.
func New(opts ...Option) *Extension {
	e := &Extension{skipNegativeSpace: true, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State is the per-MountState state of the extension.
type State struct {
	input        *Input
	previousRect rendering.Rect
	topsIndex    int
	bottomsIndex int

	mountedThisFrame map[int64]struct{}
	// Items mounted but not yet bound. Binding them must not notify nested
	// content a second time.
	skipNotifyOnBind map[int64]struct{}
	nestedContent    map[int64]rendercore.Content
}

// Input returns the input of the last mounted tree.
func (s *State) Input() *Input { return s.input }

// PreviousVisibleRect returns the rect of the last processed visibility change.
func (s *State) PreviousVisibleRect() rendering.Rect { return s.previousRect }

// PreviousTopsIndex returns the cursor into the outputs ordered by top.
func (s *State) PreviousTopsIndex() int { return s.topsIndex }

// PreviousBottomsIndex returns the cursor into the outputs ordered by bottom.
func (s *State) PreviousBottomsIndex() int { return s.bottomsIndex }

// CreateState implements rendercore.MountExtension.
func (e *Extension) CreateState() any {
	return &State{
		mountedThisFrame: make(map[int64]struct{}),
		skipNotifyOnBind: make(map[int64]struct{}),
		nestedContent:    make(map[int64]rendercore.Content),
	}
}

// CanPreventMount implements rendercore.MountExtension.
func (e *Extension) CanPreventMount() bool { return true }

func stateOf(es *rendercore.ExtensionState) *State {
	return es.State().(*State)
}

// BeforeMount releases references for outputs that left the tree and
// installs the new input.
func (e *Extension) BeforeMount(es *rendercore.ExtensionState, _ *rendercore.RenderTree, input any, rect rendering.Rect) error {
	in, ok := input.(*Input)
	if !ok || in == nil {
		return errors.Fatal("IncrementalMount.BeforeMount", errors.KindPrecondition, -1,
			fmt.Errorf("incremental mount input must be *incrementalmount.Input, got %T", input))
	}
	e.tracer.BeginSection("IncrementalMount.BeforeMount")
	defer e.tracer.EndSection()

	st := stateOf(es)
	e.releaseReferencesForRemovedItems(es, st, in)
	st.input = in
	st.previousRect = rect
	e.log.Debug().Int("outputs", in.Count()).Stringer("visible_rect", rect).Msg("before mount")
	return nil
}

// AfterMount positions the cursors for the rect used by the mount pass.
func (e *Extension) AfterMount(es *rendercore.ExtensionState) error {
	st := stateOf(es)
	setupCursors(st, st.previousRect)
	return nil
}

// BeforeMountItem takes or drops the reference for the node about to be
// processed by the mount loop.
func (e *Extension) BeforeMountItem(es *rendercore.ExtensionState, node *rendercore.RenderTreeNode, _ int) error {
	st := stateOf(es)
	id := node.Unit().ID
	var output *Output
	if st.input != nil {
		output = st.input.OutputByID(id)
	}
	if output == nil {
		return errors.Fatal("IncrementalMount.BeforeMountItem", errors.KindInvariant, id,
			fmt.Errorf("output with id=%d not found", id))
	}
	var t transitions
	return e.maybeAcquireReference(es, st.previousRect, output, true, &t)
}

// OnVisibleBoundsChanged mounts what scrolled into rect and unmounts what
// scrolled out of it.
func (e *Extension) OnVisibleBoundsChanged(es *rendercore.ExtensionState, rect rendering.Rect) error {
	st := stateOf(es)
	if st.input == nil {
		e.log.Debug().Msg("skipping visible bounds change: nothing mounted")
		return nil
	}

	e.tracer.BeginSection("IncrementalMount.OnVisibleBoundsChanged")
	defer e.tracer.EndSection()

	if rect.IsEmpty() && st.previousRect.IsEmpty() {
		e.log.Debug().Msg("skipping visible bounds change: visible area is 0")
		e.notifyNestedContent(es, st, nil)
		return nil
	}
	if e.skipNegativeSpace && inNegativeSpace(rect) {
		e.log.Debug().Stringer("visible_rect", rect).Msg("skipping visible bounds change: negative coordinate space")
		e.notifyNestedContent(es, st, nil)
		return nil
	}

	var err error
	if st.previousRect.IsEmpty() || rect.IsEmpty() ||
		rect.Left != st.previousRect.Left || rect.Right != st.previousRect.Right {
		err = e.initIncrementalMount(es, st, rect)
	} else {
		err = e.performIncrementalMount(es, st, rect)
	}
	if err != nil {
		return err
	}
	st.previousRect = rect
	return nil
}

func inNegativeSpace(r rendering.Rect) bool {
	return (r.Top < 0 && r.Bottom <= 0) || (r.Left < 0 && r.Right < 0)
}

// OnMountItem implements rendercore.MountExtension.
func (e *Extension) OnMountItem(es *rendercore.ExtensionState, unit *rendercore.RenderUnit, content rendercore.Content, _ any) {
	id := unit.ID
	if id == rendercore.RootHostID && !es.OwnsReference(id) {
		// Deferred acquisition never mounts anything, so it cannot fail.
		_ = es.AcquireMountReference(id, true)
	}
	st := stateOf(es)
	st.skipNotifyOnBind[id] = struct{}{}
	if st.input != nil && st.input.HostsRenderTrees(id) {
		st.nestedContent[id] = content
	}
}

// OnUnmountItem implements rendercore.MountExtension.
func (e *Extension) OnUnmountItem(es *rendercore.ExtensionState, unit *rendercore.RenderUnit, _ rendercore.Content, _ any) {
	id := unit.ID
	if id == rendercore.RootHostID && es.OwnsReference(id) {
		_ = es.ReleaseMountReference(id, true)
	}
	delete(stateOf(es).nestedContent, id)
}

// OnBindItem notifies nested content of items bound again after a detach.
func (e *Extension) OnBindItem(es *rendercore.ExtensionState, unit *rendercore.RenderUnit, content rendercore.Content, _ any) {
	st := stateOf(es)
	if _, skip := st.skipNotifyOnBind[unit.ID]; skip {
		delete(st.skipNotifyOnBind, unit.ID)
		return
	}
	e.recursivelyNotify(es, st, unit.ID, content)
}

// OnUnbindItem implements rendercore.MountExtension.
func (e *Extension) OnUnbindItem(es *rendercore.ExtensionState, unit *rendercore.RenderUnit, _ rendercore.Content, _ any) {
	delete(stateOf(es).skipNotifyOnBind, unit.ID)
}

// OnUnmount drops every reference held by the extension.
func (e *Extension) OnUnmount(es *rendercore.ExtensionState) {
	es.ReleaseAllAcquiredReferences()
	st := stateOf(es)
	st.previousRect = rendering.Rect{}
	clear(st.mountedThisFrame)
}

type transitions struct {
	acquired int
	released int
}

func (e *Extension) releaseReferencesForRemovedItems(es *rendercore.ExtensionState, st *State, next *Input) {
	if st.input == nil {
		return
	}
	for _, o := range st.input.Outputs() {
		if next.OutputByID(o.ID) == nil && es.OwnsReference(o.ID) {
			_ = es.ReleaseMountReference(o.ID, true)
		}
	}
}

func (e *Extension) initIncrementalMount(es *rendercore.ExtensionState, st *State, rect rendering.Rect) error {
	var t transitions
	for _, o := range st.input.Outputs() {
		if err := e.maybeAcquireReference(es, rect, o, false, &t); err != nil {
			return err
		}
	}
	setupCursors(st, rect)
	e.metrics.IncrementalTransitions(t.acquired, t.released)
	e.log.Debug().Int("acquired", t.acquired).Int("released", t.released).Msg("full incremental mount pass")
	return nil
}

func (e *Extension) maybeAcquireReference(es *rendercore.ExtensionState, rect rendering.Rect, o *Output, isMountingPhase bool, t *transitions) error {
	mountable := isMountedHostWithChildContent(es.ContentByID(o.ID)) ||
		rect.Intersects(o.Bounds) ||
		o.ID == rendercore.RootHostID
	owns := es.OwnsReference(o.ID)
	switch {
	case mountable && !owns:
		t.acquired++
		return es.AcquireMountReference(o.ID, isMountingPhase)
	case !mountable && owns:
		t.released++
		return es.ReleaseMountReference(o.ID, isMountingPhase)
	}
	return nil
}

func isMountedHostWithChildContent(c rendercore.Content) bool {
	h, ok := c.(*rendercore.Host)
	return ok && h.MountItemCount() > 0
}

func setupCursors(st *State, rect rendering.Rect) {
	if rect.IsEmpty() || st.input == nil {
		return
	}
	st.topsIndex = st.input.FindTopCursor(rect.Bottom)
	st.bottomsIndex = st.input.FindBottomCursor(rect.Top)
}

func (e *Extension) performIncrementalMount(es *rendercore.ExtensionState, st *State, rect rendering.Rect) error {
	e.tracer.BeginSection("IncrementalMount.performIncrementalMount",
		attribute.Float64("top", rect.Top), attribute.Float64("bottom", rect.Bottom))
	defer e.tracer.EndSection()

	byTop := st.input.OrderedByTop()
	byBottom := st.input.OrderedByBottom()
	count := st.input.Count()
	prev := st.previousRect
	var t transitions

	if rect.Top >= 0 || prev.Top >= 0 {
		// Outputs crossing the top edge of the viewport.
		for st.bottomsIndex < count && rect.Top >= byBottom[st.bottomsIndex].Bounds.Bottom {
			id := byBottom[st.bottomsIndex].ID
			if id != rendercore.RootHostID && es.OwnsReference(id) {
				t.released++
				if err := es.ReleaseMountReference(id, false); err != nil {
					return err
				}
			}
			st.bottomsIndex++
		}
		for st.bottomsIndex > 0 && rect.Top < byBottom[st.bottomsIndex-1].Bounds.Bottom {
			o := byBottom[st.bottomsIndex-1]
			if rect.Bottom >= o.Bounds.Top && !es.OwnsReference(o.ID) {
				t.acquired++
				if err := es.AcquireMountReference(o.ID, false); err != nil {
					return err
				}
				st.mountedThisFrame[o.ID] = struct{}{}
			}
			st.bottomsIndex--
		}
	}

	height := 0.0
	if root := es.RootHost(); root != nil {
		height = root.Height()
	}
	if rect.Bottom < height || prev.Bottom < height {
		// Outputs crossing the bottom edge of the viewport.
		for st.topsIndex < count && rect.Bottom >= byTop[st.topsIndex].Bounds.Top {
			o := byTop[st.topsIndex]
			if rect.Top <= o.Bounds.Bottom && !es.OwnsReference(o.ID) {
				t.acquired++
				if err := es.AcquireMountReference(o.ID, false); err != nil {
					return err
				}
				st.mountedThisFrame[o.ID] = struct{}{}
			}
			st.topsIndex++
		}
		for st.topsIndex > 0 && rect.Bottom < byTop[st.topsIndex-1].Bounds.Top {
			id := byTop[st.topsIndex-1].ID
			if id != rendercore.RootHostID && es.OwnsReference(id) {
				t.released++
				if err := es.ReleaseMountReference(id, false); err != nil {
					return err
				}
			}
			st.topsIndex--
		}
	}

	e.metrics.IncrementalTransitions(t.acquired, t.released)
	e.log.Debug().Int("items_mounted", t.acquired).Int("items_unmounted", t.released).Msg("incremental mount pass")

	e.notifyNestedContent(es, st, st.mountedThisFrame)
	clear(st.mountedThisFrame)
	return nil
}

// notifyNestedContent notifies every mounted output hosting nested trees,
// except the ids in skip.
func (e *Extension) notifyNestedContent(es *rendercore.ExtensionState, st *State, skip map[int64]struct{}) {
	for _, id := range slices.Sorted(maps.Keys(st.nestedContent)) {
		if _, ok := skip[id]; ok {
			continue
		}
		if c := st.nestedContent[id]; c != nil {
			e.recursivelyNotify(es, st, id, c)
		}
	}
}

func (e *Extension) recursivelyNotify(es *rendercore.ExtensionState, st *State, id int64, content rendercore.Content) {
	if st.input == nil || !st.input.HostsRenderTrees(id) {
		return
	}
	e.log.Debug().Int64("id", id).Msg("notifying nested content")
	es.NotifyVisibleBoundsChanged(content)
}
