package rendercore

import (
	"github.com/go-drift/rendercore/pkg/pool"
	"github.com/go-drift/rendercore/pkg/telemetry"
)

// ContentPools recycles mount content per content type.
type ContentPools struct {
	sizeFor func(ContentType) int
	pools   map[ContentType]*pool.RecyclePool[Content]
	metrics *telemetry.Metrics
}

// NewContentPools creates pools sized by sizeFor. A nil sizeFor disables
// recycling: content is always created and released content is dropped.
func NewContentPools(sizeFor func(ContentType) int) *ContentPools {
	return &ContentPools{
		sizeFor: sizeFor,
		pools:   make(map[ContentType]*pool.RecyclePool[Content]),
	}
}

// FixedSizeContentPools creates pools holding up to size items per type.
func FixedSizeContentPools(size int) *ContentPools {
	return NewContentPools(func(ContentType) int { return size })
}

// SetMetrics reports pool activity to m.
func (p *ContentPools) SetMetrics(m *telemetry.Metrics) {
	p.metrics = m
}

func (p *ContentPools) poolFor(t ContentType) *pool.RecyclePool[Content] {
	if p.sizeFor == nil {
		return nil
	}
	rp, ok := p.pools[t]
	if !ok {
		rp = pool.NewRecyclePool[Content](string(t), p.sizeFor(t))
		p.pools[t] = rp
	}
	return rp
}

// Acquire returns pooled content for unit, creating it when none is idle.
func (p *ContentPools) Acquire(unit *RenderUnit) Content {
	if rp := p.poolFor(unit.Type); rp != nil {
		if c, ok := rp.Acquire(); ok {
			p.metrics.PoolAcquire(string(unit.Type), true)
			return c
		}
	}
	p.metrics.PoolAcquire(string(unit.Type), false)
	return unit.CreateContent()
}

// Release offers content back to the pool of unit's type. Hosts still holding
// items, non-recyclable content and releases into a full pool are dropped.
func (p *ContentPools) Release(unit *RenderUnit, content Content) bool {
	t := string(unit.Type)
	if !isRecyclable(content) {
		p.metrics.PoolDrop(t, "not_recyclable")
		return false
	}
	rp := p.poolFor(unit.Type)
	if rp == nil {
		p.metrics.PoolDrop(t, "disabled")
		return false
	}
	if !rp.Release(content) {
		p.metrics.PoolDrop(t, "full")
		return false
	}
	return true
}

// Idle returns the number of idle items pooled for t.
func (p *ContentPools) Idle(t ContentType) int {
	if rp, ok := p.pools[t]; ok {
		return rp.CurrentSize()
	}
	return 0
}

// Stats returns usage counters of the pool for t.
func (p *ContentPools) Stats(t ContentType) pool.Stats {
	if rp, ok := p.pools[t]; ok {
		return rp.Stats()
	}
	return pool.Stats{}
}

// Clear drops every idle item.
func (p *ContentPools) Clear() {
	for _, rp := range p.pools {
		rp.Clear()
	}
}
