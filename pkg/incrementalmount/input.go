package incrementalmount

import (
	"slices"

	"github.com/go-drift/rendercore/pkg/rendercore"
	"github.com/go-drift/rendercore/pkg/rendering"
)

// Output is the incremental mount view of one render tree node.
type Output struct {
	ID    int64
	Index int
	// Bounds are relative to the root host.
	Bounds rendering.Rect
	// HostID is the id of the parent render unit, or -1 for the root.
	HostID int64
	// HostsRenderTrees marks outputs whose content hosts nested render trees.
	HostsRenderTrees bool
}

// Input indexes the outputs of one render tree by top and by bottom edge.
// It is immutable once built.
type Input struct {
	outputs  []*Output
	byID     map[int64]*Output
	byTop    []*Output
	byBottom []*Output
}

// NewInput indexes outputs, which must be in commit order.
func NewInput(outputs []Output) *Input {
	in := &Input{
		outputs: make([]*Output, len(outputs)),
		byID:    make(map[int64]*Output, len(outputs)),
	}
	for i := range outputs {
		o := outputs[i]
		in.outputs[i] = &o
		in.byID[o.ID] = &o
	}
	in.byTop = slices.Clone(in.outputs)
	slices.SortStableFunc(in.byTop, func(a, b *Output) int {
		return compareFloat(a.Bounds.Top, b.Bounds.Top)
	})
	in.byBottom = slices.Clone(in.outputs)
	slices.SortStableFunc(in.byBottom, func(a, b *Output) int {
		return compareFloat(a.Bounds.Bottom, b.Bounds.Bottom)
	})
	return in
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// InputFromRenderTree derives the input of every node of tree.
func InputFromRenderTree(tree *rendercore.RenderTree) *Input {
	outputs := make([]Output, tree.MountableOutputCount())
	for i := range outputs {
		node := tree.NodeAt(i)
		hostID := int64(-1)
		if parent := node.Parent(); parent != nil {
			hostID = parent.Unit().ID
		}
		outputs[i] = Output{
			ID:               node.Unit().ID,
			Index:            i,
			Bounds:           node.AbsoluteBounds(),
			HostID:           hostID,
			HostsRenderTrees: node.Unit().HostsRenderTrees,
		}
	}
	return NewInput(outputs)
}

// Outputs returns the outputs in commit order.
func (in *Input) Outputs() []*Output { return in.outputs }

// Count returns the number of outputs.
func (in *Input) Count() int { return len(in.outputs) }

// OutputByID returns the output with id, or nil.
func (in *Input) OutputByID(id int64) *Output { return in.byID[id] }

// OrderedByTop returns the outputs stably sorted by ascending top edge.
func (in *Input) OrderedByTop() []*Output { return in.byTop }

// OrderedByBottom returns the outputs stably sorted by ascending bottom edge.
func (in *Input) OrderedByBottom() []*Output { return in.byBottom }

// HostsRenderTrees reports whether the output with id hosts nested trees.
func (in *Input) HostsRenderTrees(id int64) bool {
	o := in.byID[id]
	return o != nil && o.HostsRenderTrees
}

// FindTopCursor returns the index into OrderedByTop of the first output whose
// top edge is at or below rectBottom, or Count when there is none.
func (in *Input) FindTopCursor(rectBottom float64) int {
	low, high := 0, len(in.byTop)-1
	for low <= high {
		mid := low + (high-low)/2
		switch {
		case rectBottom > in.byTop[mid].Bounds.Top:
			low = mid + 1
		case mid > 0 && rectBottom <= in.byTop[mid-1].Bounds.Top:
			high = mid - 1
		default:
			return mid
		}
	}
	return len(in.byTop)
}

// FindBottomCursor returns the index into OrderedByBottom of the first output
// whose bottom edge is below rectTop, or Count when there is none.
func (in *Input) FindBottomCursor(rectTop float64) int {
	low, high := 0, len(in.byBottom)-1
	for low <= high {
		mid := low + (high-low)/2
		switch {
		case rectTop >= in.byBottom[mid].Bounds.Bottom:
			low = mid + 1
		case mid > 0 && rectTop < in.byBottom[mid-1].Bounds.Bottom:
			high = mid - 1
		default:
			return mid
		}
	}
	return len(in.byBottom)
}

// Use activates ext on the tree being built, with an input indexing the
// finished tree.
func Use(b *rendercore.Builder, ext *Extension) *rendercore.Builder {
	return b.AddExtensionFunc(ext, func(tree *rendercore.RenderTree) any {
		return InputFromRenderTree(tree)
	})
}
