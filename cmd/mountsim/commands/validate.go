package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-drift/rendercore/cmd/mountsim/internal/scenario"
)

func newValidateCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [scenario.yaml...]",
		Short: "Validate the configuration and scenario files",
		Long: `Validate checks the configuration file and every given scenario.

For each scenario this command checks:
  - YAML syntax and field constraints
  - That every step names exactly one action
  - That every tree builds (known parents, unique ids)`,
		Example: `  # Validate rendercore.yaml in the current directory
  mountsim validate

  # Validate scenarios with an explicit config
  mountsim validate -c rendercore.yaml feed.yaml scroll.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config ok (version %s)\n", g.cfg.Version)

			var errs []error
			for _, path := range args {
				if err := validateScenario(path); err != nil {
					g.log.Error().Err(err).Str("path", path).Msg("Invalid scenario")
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				fmt.Fprintf(out, "%s ok\n", path)
			}
			return errors.Join(errs...)
		},
	}
	return cmd
}

func validateScenario(path string) error {
	s, err := scenario.Load(path)
	if err != nil {
		return err
	}
	for name := range s.Trees {
		if _, err := s.Build(name, nil); err != nil {
			return err
		}
	}
	return nil
}
