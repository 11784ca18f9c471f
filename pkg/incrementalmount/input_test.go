package incrementalmount

import (
	"testing"

	"github.com/go-drift/rendercore/pkg/rendering"
)

// threeRows has tops 0, 10, 20 and bottoms 10, 20, 30.
func threeRows() *Input {
	return NewInput([]Output{
		{ID: 1, Index: 0, Bounds: rendering.RectFromLTWH(0, 0, 100, 10)},
		{ID: 2, Index: 1, Bounds: rendering.RectFromLTWH(0, 10, 100, 10)},
		{ID: 3, Index: 2, Bounds: rendering.RectFromLTWH(0, 20, 100, 10)},
	})
}

func TestFindTopCursor(t *testing.T) {
	in := threeRows()
	tests := []struct {
		rectBottom float64
		want       int
	}{
		{-5, 0},
		{0, 0},
		{5, 1},
		{10, 1},
		{15, 2},
		{20, 2},
		{25, 3},
		{100, 3},
	}
	for _, tt := range tests {
		if got := in.FindTopCursor(tt.rectBottom); got != tt.want {
			t.Errorf("FindTopCursor(%v) = %d, want %d", tt.rectBottom, got, tt.want)
		}
	}
}

func TestFindBottomCursor(t *testing.T) {
	in := threeRows()
	tests := []struct {
		rectTop float64
		want    int
	}{
		{-5, 0},
		{0, 0},
		{9, 0},
		{10, 1},
		{15, 1},
		{20, 2},
		{29, 2},
		{30, 3},
		{100, 3},
	}
	for _, tt := range tests {
		if got := in.FindBottomCursor(tt.rectTop); got != tt.want {
			t.Errorf("FindBottomCursor(%v) = %d, want %d", tt.rectTop, got, tt.want)
		}
	}
}

func TestCursorsOnEmptyInput(t *testing.T) {
	in := NewInput(nil)
	if in.FindTopCursor(10) != 0 || in.FindBottomCursor(10) != 0 {
		t.Error("cursors of an empty input should be 0")
	}
}

func TestOrderingsAreStable(t *testing.T) {
	in := NewInput([]Output{
		{ID: 1, Bounds: rendering.Rect{Top: 10, Bottom: 40}},
		{ID: 2, Bounds: rendering.Rect{Top: 0, Bottom: 40}},
		{ID: 3, Bounds: rendering.Rect{Top: 10, Bottom: 20}},
		{ID: 4, Bounds: rendering.Rect{Top: 0, Bottom: 20}},
	})
	ids := func(outputs []*Output) []int64 {
		out := make([]int64, len(outputs))
		for i, o := range outputs {
			out[i] = o.ID
		}
		return out
	}
	if got, want := ids(in.OrderedByTop()), []int64{2, 4, 1, 3}; !equalIDs(got, want) {
		t.Errorf("OrderedByTop = %v, want %v", got, want)
	}
	if got, want := ids(in.OrderedByBottom()), []int64{3, 4, 1, 2}; !equalIDs(got, want) {
		t.Errorf("OrderedByBottom = %v, want %v", got, want)
	}
	if got, want := ids(in.Outputs()), []int64{1, 2, 3, 4}; !equalIDs(got, want) {
		t.Errorf("Outputs = %v, want commit order %v", got, want)
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOutputLookup(t *testing.T) {
	in := NewInput([]Output{
		{ID: 1, HostsRenderTrees: true},
		{ID: 2},
	})
	if in.Count() != 2 || in.OutputByID(2) == nil || in.OutputByID(9) != nil {
		t.Error("lookup by id broken")
	}
	if !in.HostsRenderTrees(1) || in.HostsRenderTrees(2) || in.HostsRenderTrees(9) {
		t.Error("HostsRenderTrees broken")
	}
}
