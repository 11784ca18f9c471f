// Package commands implements the mountsim command tree.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/go-drift/rendercore/pkg/config"
	"github.com/go-drift/rendercore/pkg/telemetry"
)

// globals holds state shared by every subcommand.
type globals struct {
	configPath string
	verbose    bool
	jsonOutput bool

	cfg    *config.Config
	log    zerolog.Logger
	closer io.Closer
}

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "mountsim",
		Short: "Replay render tree mount scenarios",
		Long: `mountsim drives the mount engine with scenario files: a set of render
trees and a list of mount, scroll, unmount, detach and attach steps.

It prints the mounted render unit ids after every step and can expose
pass traces and Prometheus metrics over HTTP while it runs.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if g.closer != nil {
				return g.closer.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file path (default ./"+config.FileName+" if present)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newReplayCommand(g))
	rootCmd.AddCommand(newValidateCommand(g))

	return rootCmd
}

// load reads the configuration and builds the logger.
func (g *globals) load() error {
	var err error
	if g.configPath != "" {
		g.cfg, err = config.Load(g.configPath)
	} else {
		g.cfg, err = config.LoadOptional(".")
	}
	if err != nil {
		return err
	}
	if g.verbose {
		g.cfg.Logging.Level = "debug"
	}
	g.log, g.closer, err = telemetry.NewLogger(g.cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to open log output: %w", err)
	}
	return nil
}
