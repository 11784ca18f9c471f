package rendering

import "testing"

func TestRectIntersects(t *testing.T) {
	base := RectFromLTWH(0, 0, 100, 100)
	tests := []struct {
		name  string
		other Rect
		want  bool
	}{
		{"overlapping", RectFromLTWH(50, 50, 100, 100), true},
		{"contained", RectFromLTWH(10, 10, 10, 10), true},
		{"shared bottom edge", RectFromLTWH(0, 100, 100, 10), false},
		{"shared right edge", RectFromLTWH(100, 0, 10, 100), false},
		{"disjoint", RectFromLTWH(200, 200, 10, 10), false},
		{"zero-width other inside", Rect{Left: 10, Top: 10, Right: 10, Bottom: 20}, true},
		{"zero-height other inside", Rect{Left: 10, Top: 50, Right: 90, Bottom: 50}, true},
		{"zero-height other on edge", Rect{Left: 10, Top: 100, Right: 90, Bottom: 100}, false},
	}
	for _, tt := range tests {
		if got := base.Intersects(tt.other); got != tt.want {
			t.Errorf("%s: Intersects(%v) = %v, want %v", tt.name, tt.other, got, tt.want)
		}
	}
	if (Rect{}).Intersects(base) {
		t.Error("empty rect should not intersect anything")
	}
}

func TestRectIsEmpty(t *testing.T) {
	if !(Rect{}).IsEmpty() {
		t.Error("zero rect should be empty")
	}
	if RectFromLTWH(0, 0, 1, 1).IsEmpty() {
		t.Error("1x1 rect should not be empty")
	}
	if !(Rect{Left: 0, Top: 10, Right: 10, Bottom: 5}).IsEmpty() {
		t.Error("inverted rect should be empty")
	}
}

func TestRectTranslateAndIntersect(t *testing.T) {
	r := RectFromLTWH(0, 0, 10, 10).Translate(5, 5)
	if r != (Rect{Left: 5, Top: 5, Right: 15, Bottom: 15}) {
		t.Fatalf("Translate = %v", r)
	}
	got := r.Intersect(RectFromLTWH(0, 0, 10, 10))
	want := Rect{Left: 5, Top: 5, Right: 10, Bottom: 10}
	if got != want {
		t.Errorf("Intersect = %v, want %v", got, want)
	}
	if !RectFromLTWH(20, 20, 5, 5).Intersect(r).IsEmpty() {
		t.Error("disjoint intersect should be empty")
	}
}
