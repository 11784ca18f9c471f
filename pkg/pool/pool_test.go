package pool

import "testing"

func TestRecyclePoolLIFO(t *testing.T) {
	p := NewRecyclePool[int]("ints", 2)
	if _, ok := p.Acquire(); ok {
		t.Fatal("expected empty pool to miss")
	}
	if !p.Release(1) || !p.Release(2) {
		t.Fatal("expected releases within capacity to be kept")
	}
	if p.Release(3) {
		t.Error("expected release past capacity to be dropped")
	}
	if got := p.CurrentSize(); got != 2 {
		t.Errorf("CurrentSize = %d, want 2", got)
	}
	if v, ok := p.Acquire(); !ok || v != 2 {
		t.Errorf("Acquire = %d, %v; want 2, true", v, ok)
	}
	stats := p.Stats()
	want := Stats{Hits: 1, Misses: 1, Released: 2, Dropped: 1}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}

func TestRecyclePoolDisabled(t *testing.T) {
	for _, size := range []int{0, -4} {
		p := NewRecyclePool[string]("disabled", size)
		if p.MaxSize() != 0 {
			t.Errorf("MaxSize = %d, want 0", p.MaxSize())
		}
		if p.Release("x") {
			t.Error("disabled pool should drop every release")
		}
	}
}

func TestRecyclePoolClear(t *testing.T) {
	p := NewRecyclePool[*int]("ptrs", 3)
	a, b := 1, 2
	p.Release(&a)
	p.Release(&b)
	p.Clear()
	if p.CurrentSize() != 0 {
		t.Errorf("CurrentSize after Clear = %d", p.CurrentSize())
	}
	if p.Name() != "ptrs" {
		t.Errorf("Name = %q", p.Name())
	}
}
