package testing

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-drift/rendercore/pkg/rendercore"
	"github.com/go-drift/rendercore/pkg/rendering"
)

// EventKind names a recorded lifecycle callback.
type EventKind string

const (
	EventMount   EventKind = "mount"
	EventUnmount EventKind = "unmount"
	EventBind    EventKind = "bind"
	EventUnbind  EventKind = "unbind"
)

// Event is one recorded lifecycle callback.
type Event struct {
	Kind    EventKind
	ID      int64
	Content rendercore.Content
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%d)", e.Kind, e.ID)
}

// Recorder records the lifecycle callbacks of the render units it creates.
type Recorder struct {
	events  []Event
	created int
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(kind EventKind, id int64, c rendercore.Content) {
	r.events = append(r.events, Event{Kind: kind, ID: id, Content: c})
}

// Events returns every recorded event in order.
func (r *Recorder) Events() []Event {
	return r.events
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.events = nil
}

// Count returns how often kind was recorded for id.
func (r *Recorder) Count(kind EventKind, id int64) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind && e.ID == id {
			n++
		}
	}
	return n
}

// CountKind returns how often kind was recorded for any id.
func (r *Recorder) CountKind(kind EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// MountedIDs returns the ids with more mount than unmount events, sorted.
func (r *Recorder) MountedIDs() []int64 {
	balance := make(map[int64]int)
	for _, e := range r.events {
		switch e.Kind {
		case EventMount:
			balance[e.ID]++
		case EventUnmount:
			balance[e.ID]--
		}
	}
	var ids []int64
	for _, id := range slices.Sorted(maps.Keys(balance)) {
		if balance[id] > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Trace formats the events compactly, e.g. "mount(1) bind(1)".
func (r *Recorder) Trace() string {
	parts := make([]string, len(r.events))
	for i, e := range r.events {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}

// Handle is the native handle of recorded leaf content.
type Handle struct {
	Serial        int
	Bounds        rendering.Rect
	Notifications int
	NonRecyclable bool
}

// ApplyBounds implements rendercore.BoundsApplier.
func (h *Handle) ApplyBounds(b rendering.Rect) { h.Bounds = b }

// Recyclable implements rendercore.Recycler.
func (h *Handle) Recyclable() bool { return !h.NonRecyclable }

// NotifyVisibleBoundsChanged implements rendercore.VisibleBoundsListener.
func (h *Handle) NotifyVisibleBoundsChanged() { h.Notifications++ }

// HandleOf returns the *Handle of leaf content, or nil.
func HandleOf(c rendercore.Content) *Handle {
	if leaf, ok := c.(*rendercore.Leaf); ok {
		h, _ := leaf.Handle.(*Handle)
		return h
	}
	return nil
}
