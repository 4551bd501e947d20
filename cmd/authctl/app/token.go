package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	authframework "github.com/giantswarm/auth-framework"
	"github.com/giantswarm/auth-framework/token"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue, verify and revoke tokens",
	}
	cmd.AddCommand(
		newTokenIssueCmd(opts),
		newTokenValidateCmd(opts),
		newTokenInspectCmd(),
		newTokenRevokeCmd(opts),
	)
	return cmd
}

func newTokenIssueCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			fw, closeFn, err := opts.openFramework(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			var issueOpts []authframework.IssueOption
			if cmd.Flags().Changed("ttl") {
				issueOpts = append(issueOpts, authframework.WithTTL(ttl))
			}
			tok, err := fw.CreateAuthToken(ctx, subject, scopes, methodJWT, issueOpts...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tok)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject the token is issued to")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scope to grant (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default framework.default_token_ttl)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newTokenValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate TOKEN",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fw, closeFn, err := opts.openFramework(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			claims, err := fw.Validate(ctx, args[0])
			if err != nil {
				if errors.Is(err, authframework.ErrTokenRevoked) {
					return errors.New("token is revoked")
				}
				if reason := token.ReasonOf(err); reason != "" {
					return fmt.Errorf("token is invalid: %s", reason)
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), claims)
		},
	}
}

func newTokenInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Decode a token's claims WITHOUT verifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := token.PeekClaims(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), claims)
		},
	}
}

func newTokenRevokeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke TOKEN",
		Short: "Revoke a token until it expires",
		Long: `Revoke a token until it expires.

The revocation is recorded in the configured store, so it only outlives this
process with the redis backend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fw, closeFn, err := opts.openFramework(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := fw.RevokeToken(ctx, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "revoked")
			return err
		},
	}
}
