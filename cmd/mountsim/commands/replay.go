package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/go-drift/rendercore/cmd/mountsim/internal/scenario"
	"github.com/go-drift/rendercore/pkg/config"
	"github.com/go-drift/rendercore/pkg/diagnostics"
	rcerrors "github.com/go-drift/rendercore/pkg/errors"
	"github.com/go-drift/rendercore/pkg/incrementalmount"
	"github.com/go-drift/rendercore/pkg/rendercore"
	"github.com/go-drift/rendercore/pkg/telemetry"
)

type replayOptions struct {
	incremental   bool
	trace         bool
	listen        string
	traceCapacity int
}

// replayReport is the --json output of replay.
type replayReport struct {
	Scenario string                   `json:"scenario"`
	Steps    []scenario.Result        `json:"steps"`
	Trace    diagnostics.PassTimeline `json:"trace"`
}

func newReplayCommand(g *globals) *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Replay a scenario and print the mounted items after each step",
		Long: `Replay loads a scenario file, mounts its trees into a fresh mount state
and applies every step in order. After each step it prints the ids of the
mounted render units.

With --listen the diagnostics endpoints (/trace, /metrics, /health) are
served during the replay and until the command is interrupted.`,
		Example: `  # Replay with incremental mount
  mountsim replay feed.yaml

  # Mount everything, print spans and a JSON report
  mountsim replay --incremental=false --trace --json feed.yaml

  # Keep serving diagnostics after the replay
  mountsim replay --listen 127.0.0.1:9464 feed.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), cmd.OutOrStdout(), g, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.incremental, "incremental", true, "mount only items intersecting the visible rect")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "export spans to stdout")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "serve diagnostics on this address")
	cmd.Flags().IntVar(&opts.traceCapacity, "trace-samples", 0, "number of pass samples kept for /trace")

	return cmd
}

func runReplay(ctx context.Context, out io.Writer, g *globals, path string, opts replayOptions) error {
	s, err := scenario.Load(path)
	if err != nil {
		return err
	}

	metricsCfg := g.cfg.Metrics
	if opts.listen != "" {
		metricsCfg.Enabled = true
	}
	metrics := telemetry.NewMetrics(metricsCfg)

	tracer, shutdown, err := newTracer(g.cfg.Tracing, opts.trace)
	if err != nil {
		return err
	}
	defer shutdown(context.WithoutCancel(ctx))

	rcerrors.SetHandler(&rcerrors.LogHandler{Verbose: g.verbose, Logger: g.log})
	defer rcerrors.SetHandler(nil)

	trace := diagnostics.NewTraceBuffer(opts.traceCapacity, 0)
	msOpts := append(rendercore.OptionsFromConfig(g.cfg),
		rendercore.WithLogger(g.log),
		rendercore.WithMetrics(metrics),
		rendercore.WithTracer(tracer),
		rendercore.WithPassRecorder(trace),
	)
	ms := rendercore.NewMountState(s.NewRootHost(), msOpts...)

	var ext *incrementalmount.Extension
	if opts.incremental {
		ext = incrementalmount.New(append(incrementalmount.OptionsFromConfig(g.cfg),
			incrementalmount.WithLogger(g.log),
			incrementalmount.WithMetrics(metrics),
			incrementalmount.WithTracer(tracer),
		)...)
	}

	var server *diagnostics.Server
	if opts.listen != "" {
		server = diagnostics.NewServer(trace, metrics, g.log)
		if _, err := server.Start(opts.listen); err != nil {
			return err
		}
		defer server.Stop(context.WithoutCancel(ctx))
	}

	g.log.Info().
		Str("scenario", s.Name).
		Str("mount_state", ms.ID()).
		Bool("incremental", opts.incremental).
		Msg("Replaying scenario")

	report := replayReport{Scenario: s.Name}
	err = scenario.NewPlayer(s, ms, ext).Play(ctx, func(res scenario.Result) {
		if g.jsonOutput {
			report.Steps = append(report.Steps, res)
			return
		}
		fmt.Fprintf(out, "step %d %s: mounted %v\n", res.Index, describe(res), res.Mounted)
	})
	if err != nil {
		return err
	}

	report.Trace = trace.Snapshot()
	if g.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%d passes, %d slower than %.2fms\n",
			len(report.Trace.Samples), report.Trace.SlowPasses, report.Trace.ThresholdMs)
	}

	if server != nil {
		g.log.Info().Msg("Replay finished, serving diagnostics until interrupted")
		<-ctx.Done()
	}
	return nil
}

func describe(res scenario.Result) string {
	switch {
	case res.Tree != "":
		return fmt.Sprintf("%s(%s)", res.Op, res.Tree)
	case res.Visible != nil:
		return fmt.Sprintf("%s%v", res.Op, res.Visible)
	default:
		return res.Op
	}
}

// newTracer builds a tracer from the configuration, forcing the stdout
// exporter when force is set. The returned shutdown flushes the provider.
func newTracer(cfg config.TracingConfig, force bool) (*telemetry.Tracer, func(context.Context) error, error) {
	if force {
		cfg.Enabled = true
		cfg.Exporter = "stdout"
	}
	provider, err := telemetry.NewTracerProvider(cfg)
	if err != nil {
		return nil, nil, err
	}
	if provider == nil {
		return nil, func(context.Context) error { return nil }, nil
	}
	return telemetry.NewTracerWithProvider(provider), provider.Shutdown, nil
}
