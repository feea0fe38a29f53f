package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/synthctl/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration files",
	}
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	return cmd
}

func newConfigValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a config file and print the effective configuration",
		Long: `Load a YAML (.yaml, .yml) or TOML (.toml) config file, apply defaults,
validate it against the schema and print the result.

Examples:
  synthctl config validate synth.yaml
  synthctl config validate synth.toml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			cfg, err := config.Load(args[0])
			if err != nil {
				return fail(f, ExitFailure, CodeConfig, "invalid config", err)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fail(f, ExitCommandError, CodeConfig, "failed to render config", err)
			}
			return f.Success(cfg, fmt.Sprintf("config valid: %s\n%s", args[0], out))
		},
	}
}
