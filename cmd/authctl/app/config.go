package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/auth-framework/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and check configuration files",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Print a configuration file with every default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.Default().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report every problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			// Key files are only read when building, not by Validate
			if _, err := file.FrameworkConfig(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return err
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
