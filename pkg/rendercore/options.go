package rendercore

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/go-drift/rendercore/pkg/config"
	"github.com/go-drift/rendercore/pkg/telemetry"
)

// Option configures a MountState.
type Option func(*MountState)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(m *MountState) { m.log = l }
}

// WithMetrics reports mount activity to metrics.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *MountState) { m.metrics = metrics }
}

// WithTracer records mount passes as trace sections.
func WithTracer(t *telemetry.Tracer) Option {
	return func(m *MountState) { m.tracer = t }
}

// WithEnsureParentMounted controls whether mounting a unit whose host is not
// mounted mounts the host first (true, the default) or fails with a
// HostNotMountedError.
func WithEnsureParentMounted(ensure bool) Option {
	return func(m *MountState) { m.ensureParentMounted = ensure }
}

// WithContentPools sets the pools content is acquired from and released to.
func WithContentPools(p *ContentPools) Option {
	return func(m *MountState) { m.pools = p }
}

// WithThreadChecker installs a check run by every entry point. Calls for
// which it returns false fail with errors.ErrWrongThread.
func WithThreadChecker(isUIThread func() bool) Option {
	return func(m *MountState) { m.isUIThread = isUIThread }
}

// WithPassRecorder receives statistics of every completed pass.
func WithPassRecorder(r PassRecorder) Option {
	return func(m *MountState) { m.recorder = r }
}

// WithClock replaces the time source used for pass statistics.
func WithClock(now func() time.Time) Option {
	return func(m *MountState) { m.now = now }
}

// OptionsFromConfig translates a loaded configuration into options.
func OptionsFromConfig(cfg *config.Config) []Option {
	opts := []Option{WithEnsureParentMounted(cfg.Mount.EnsureParentMounted)}
	if cfg.Pool.Enabled {
		opts = append(opts, WithContentPools(NewContentPools(func(t ContentType) int {
			return cfg.PoolSize(string(t))
		})))
	}
	return opts
}

// PassStats summarizes one mount pass.
type PassStats struct {
	// StateID is the id of the MountState that ran the pass.
	StateID string
	// Op is "mount", "visible-bounds" or "unmount-all".
	Op         string
	Start      time.Time
	Duration   time.Duration
	Mounted    int
	Unmounted  int
	Updated    int
	Moved      int
	Recoveries int
	// MountedItems is the number of mounted items after the pass.
	MountedItems int
}

// PassRecorder receives pass statistics.
type PassRecorder interface {
	RecordPass(PassStats)
}
