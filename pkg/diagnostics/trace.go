// Package diagnostics records mount pass samples and serves them, together
// with the engine metrics, over HTTP.
package diagnostics

import (
	"sync"
	"time"

	"github.com/go-drift/rendercore/pkg/rendercore"
)

const (
	traceSamplesDefault   = 240
	defaultSlowPassThresh = 4 * time.Millisecond
)

// PassCounts captures the work done by one pass.
type PassCounts struct {
	Mounted      int `json:"mounted"`
	Unmounted    int `json:"unmounted"`
	Updated      int `json:"updated"`
	Moved        int `json:"moved"`
	Recoveries   int `json:"recoveries,omitempty"`
	MountedItems int `json:"mountedItems"`
}

// PassSample is a single mount pass trace sample.
type PassSample struct {
	Timestamp int64      `json:"ts"`
	StateID   string     `json:"stateId"`
	Op        string     `json:"op"`
	PassMs    float64    `json:"passMs"`
	Counts    PassCounts `json:"counts"`
}

// PassTimeline is the /trace response shape.
type PassTimeline struct {
	Samples     []PassSample `json:"samples"`
	SlowPasses  int          `json:"slowPasses"`
	ThresholdMs float64      `json:"thresholdMs"`
}

// TraceBuffer stores recent pass samples in a ring buffer. It implements
// rendercore.PassRecorder and may be shared by several mount states.
type TraceBuffer struct {
	mu        sync.RWMutex
	samples   []PassSample
	index     int
	count     int
	slow      int
	threshold time.Duration
}

var _ rendercore.PassRecorder = (*TraceBuffer)(nil)

// NewTraceBuffer creates a trace buffer. Non-positive arguments select the
// defaults.
func NewTraceBuffer(capacity int, threshold time.Duration) *TraceBuffer {
	if capacity <= 0 {
		capacity = traceSamplesDefault
	}
	if threshold <= 0 {
		threshold = defaultSlowPassThresh
	}
	return &TraceBuffer{
		samples:   make([]PassSample, capacity),
		threshold: threshold,
	}
}

// Capacity returns the buffer capacity.
func (b *TraceBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// SetThreshold updates the slow pass threshold.
func (b *TraceBuffer) SetThreshold(threshold time.Duration) {
	if threshold <= 0 {
		threshold = defaultSlowPassThresh
	}
	b.mu.Lock()
	b.threshold = threshold
	b.mu.Unlock()
}

// Threshold returns the slow pass threshold.
func (b *TraceBuffer) Threshold() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.threshold
}

// RecordPass adds a sample for stats.
func (b *TraceBuffer) RecordPass(stats rendercore.PassStats) {
	sample := PassSample{
		Timestamp: stats.Start.UnixMilli(),
		StateID:   stats.StateID,
		Op:        stats.Op,
		PassMs:    durationToMillis(stats.Duration),
		Counts: PassCounts{
			Mounted:      stats.Mounted,
			Unmounted:    stats.Unmounted,
			Updated:      stats.Updated,
			Moved:        stats.Moved,
			Recoveries:   stats.Recoveries,
			MountedItems: stats.MountedItems,
		},
	}
	b.mu.Lock()
	b.samples[b.index] = sample
	b.index = (b.index + 1) % len(b.samples)
	if b.count < len(b.samples) {
		b.count++
	}
	if stats.Duration > b.threshold {
		b.slow++
	}
	b.mu.Unlock()
}

// Snapshot returns a chronological copy of samples and stats.
func (b *TraceBuffer) Snapshot() PassTimeline {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return PassTimeline{ThresholdMs: durationToMillis(b.threshold)}
	}

	result := make([]PassSample, b.count)
	if b.count < len(b.samples) {
		copy(result, b.samples[:b.count])
	} else {
		copy(result, b.samples[b.index:])
		copy(result[len(b.samples)-b.index:], b.samples[:b.index])
	}

	return PassTimeline{
		Samples:     result,
		SlowPasses:  b.slow,
		ThresholdMs: durationToMillis(b.threshold),
	}
}

// Reset drops all samples.
func (b *TraceBuffer) Reset() {
	b.mu.Lock()
	clear(b.samples)
	b.index, b.count, b.slow = 0, 0, 0
	b.mu.Unlock()
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
