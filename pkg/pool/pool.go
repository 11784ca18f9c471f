// Package pool provides bounded recycling pools for mount content.
//
// A RecyclePool keeps at most MaxSize idle items. Releasing into a full pool
// drops the item; pools never grow past their capacity. Pools are not safe for
// concurrent use: the mount engine drives them from its single UI thread.
package pool

// Stats reports pool usage counters.
type Stats struct {
	Hits     int
	Misses   int
	Released int
	Dropped  int
}

// RecyclePool is a bounded LIFO pool of idle items.
type RecyclePool[T any] struct {
	name    string
	maxSize int
	items   []T
	stats   Stats
}

// NewRecyclePool creates a pool holding at most maxSize idle items.
// A maxSize of zero or less yields a disabled pool.
func NewRecyclePool[T any](name string, maxSize int) *RecyclePool[T] {
	if maxSize < 0 {
		maxSize = 0
	}
	return &RecyclePool[T]{name: name, maxSize: maxSize}
}

// Name returns the pool name.
func (p *RecyclePool[T]) Name() string {
	return p.name
}

// MaxSize returns the pool capacity.
func (p *RecyclePool[T]) MaxSize() int {
	return p.maxSize
}

// CurrentSize returns the number of idle items.
func (p *RecyclePool[T]) CurrentSize() int {
	return len(p.items)
}

// Acquire pops the most recently released item.
func (p *RecyclePool[T]) Acquire() (T, bool) {
	var zero T
	n := len(p.items)
	if n == 0 {
		p.stats.Misses++
		return zero, false
	}
	item := p.items[n-1]
	p.items[n-1] = zero
	p.items = p.items[:n-1]
	p.stats.Hits++
	return item, true
}

// Release returns item to the pool. It reports false when the pool is full
// or disabled and the item was dropped.
func (p *RecyclePool[T]) Release(item T) bool {
	if len(p.items) >= p.maxSize {
		p.stats.Dropped++
		return false
	}
	p.items = append(p.items, item)
	p.stats.Released++
	return true
}

// Clear drops all idle items.
func (p *RecyclePool[T]) Clear() {
	clear(p.items)
	p.items = p.items[:0]
}

// Stats returns a copy of the usage counters.
func (p *RecyclePool[T]) Stats() Stats {
	return p.stats
}
