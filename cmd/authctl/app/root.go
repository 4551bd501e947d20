// Package app provides the commands of the authctl command-line tool.
package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	authframework "github.com/giantswarm/auth-framework"
	"github.com/giantswarm/auth-framework/config"
)

// Version is set at build time
var Version = "dev"

// methodJWT is the name authctl registers the JWT method under
const methodJWT = "jwt"

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCmd creates the authctl root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:               "authctl",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Version:           Version,
		Short:             "Operate an auth-framework deployment",
		Long: `authctl generates key material, issues and verifies tokens and renders
discovery documents for an auth-framework deployment.

Configuration is read from --config (YAML) and AUTHFW_* environment variables.`,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newKeygenCmd(),
		newTokenCmd(opts),
		newJWKSCmd(opts),
		newMetadataCmd(opts),
		newConfigCmd(opts),
	)
	return rootCmd
}

// logger writes text logs to the command's stderr
func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openFramework loads the configuration and returns an initialized framework
// on the configured store. The returned close function releases the store.
func (o *rootOptions) openFramework(ctx context.Context, cmd *cobra.Command) (*authframework.Framework, func(), error) {
	file, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := o.logger(cmd)

	fwConfig, err := file.FrameworkConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := file.OpenStore(ctx, logger)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("Failed to close storage", "error", err)
			}
		}
	}

	fw, err := authframework.New(fwConfig, store, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	fw.SetAuditor(file.Auditor(logger))
	if err := fw.RegisterMethod(methodJWT, authframework.NewJWTMethod()); err != nil {
		closeStore()
		return nil, nil, err
	}
	if err := fw.Initialize(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}
	return fw, closeStore, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
