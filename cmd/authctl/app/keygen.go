package app

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/auth-framework/security"
	"github.com/giantswarm/auth-framework/token"
)

const minRSABits = 2048

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate signing and encryption keys",
	}

	hmacCmd := &cobra.Command{
		Use:   "hmac",
		Short: "Generate an HS256 secret (base64url, suitable for framework.hmac_secret)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := make([]byte, token.MinHMACSecretLength)
			if _, err := rand.Read(secret); err != nil {
				return fmt.Errorf("failed to generate secret: %w", err)
			}
			// base64url of 32 bytes is 43 characters, above the minimum length
			_, err := fmt.Fprintln(cmd.OutOrStdout(), base64.RawURLEncoding.EncodeToString(secret))
			return err
		},
	}

	var bits int
	rsaCmd := &cobra.Command{
		Use:   "rsa",
		Short: "Generate an RS256 private key as PKCS#8 PEM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bits < minRSABits {
				return fmt.Errorf("--bits must be at least %d", minRSABits)
			}
			key, err := rsa.GenerateKey(rand.Reader, bits)
			if err != nil {
				return fmt.Errorf("failed to generate RSA key: %w", err)
			}
			der, err := x509.MarshalPKCS8PrivateKey(key)
			if err != nil {
				return fmt.Errorf("failed to encode RSA key: %w", err)
			}
			return pem.Encode(cmd.OutOrStdout(), &pem.Block{Type: "PRIVATE KEY", Bytes: der})
		},
	}
	rsaCmd.Flags().IntVar(&bits, "bits", minRSABits, "RSA modulus size")

	encCmd := &cobra.Command{
		Use:   "encryption",
		Short: "Generate an AES-256 key for security.encryption_key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := security.GenerateKey()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), security.KeyToBase64(key))
			return err
		},
	}

	cmd.AddCommand(hmacCmd, rsaCmd, encCmd)
	return cmd
}
