package app

import (
	"github.com/spf13/cobra"

	"github.com/giantswarm/auth-framework/config"
	"github.com/giantswarm/auth-framework/server"
	"github.com/giantswarm/auth-framework/storage/memory"
)

func newJWKSCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "jwks",
		Short: "Print the JSON Web Key Set of the configured signing key",
		Long: `Print the JSON Web Key Set of the configured signing key.

HMAC secrets are never published, so the set is empty for HS256.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			tokens, err := file.TokenManager()
			if err != nil {
				return err
			}
			data, err := tokens.MarshalJWKS()
			if err != nil {
				return err
			}
			data = append(data, '\n')
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newMetadataCmd(opts *rootOptions) *cobra.Command {
	endpoints := server.DefaultEndpoints()
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Print the OAuth authorization server metadata document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			file, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			tokens, err := file.TokenManager()
			if err != nil {
				return err
			}
			// The document depends on configuration only; no store is consulted.
			srv, err := server.New(ctx, memory.New(), file.ServerConfig(tokens), opts.logger(cmd))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), srv.Metadata(endpoints))
		},
	}
	cmd.Flags().StringVar(&endpoints.Authorization, "authorization-path", endpoints.Authorization, "Authorization endpoint path")
	cmd.Flags().StringVar(&endpoints.Token, "token-path", endpoints.Token, "Token endpoint path")
	cmd.Flags().StringVar(&endpoints.JWKS, "jwks-path", endpoints.JWKS, "JWKS path")
	cmd.Flags().StringVar(&endpoints.Revocation, "revocation-path", endpoints.Revocation, "Revocation endpoint path (empty to omit)")
	cmd.Flags().StringVar(&endpoints.Introspection, "introspection-path", endpoints.Introspection, "Introspection endpoint path (empty to omit)")
	return cmd
}
