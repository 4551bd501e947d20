package authframework

import (
	"fmt"
	"time"

	"github.com/giantswarm/auth-framework/token"
)

// Config holds the framework configuration. It is supplied by the caller;
// the framework never reads files or environment variables itself.
type Config struct {
	// Issuer is written to and required in the iss claim (required)
	Issuer string

	// Audience is written to and required in the aud claim (required)
	Audience string

	// DefaultTokenTTL is the lifetime of tokens issued without WithTTL.
	// Default: 1 hour
	DefaultTokenTTL time.Duration

	// HMACSecret selects HS256 signing. Must be at least 32 bytes.
	// Exactly one of HMACSecret and RSAPrivateKeyPEM must be set.
	HMACSecret []byte

	// RSAPrivateKeyPEM selects RS256 signing (PKCS#1 or PKCS#8 PEM)
	RSAPrivateKeyPEM []byte

	// KeyID is placed in the kid header of issued tokens.
	// For RSA keys it defaults to the RFC 7638 thumbprint.
	KeyID string

	// Now overrides the clock used for issuance, validation and revocation (tests)
	Now func() time.Time
}

// newTokenManager builds the token manager described by the configuration
func (c *Config) newTokenManager() (*token.Manager, error) {
	hasHMAC := len(c.HMACSecret) > 0
	hasRSA := len(c.RSAPrivateKeyPEM) > 0

	tokenConfig := token.Config{
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		DefaultTTL: c.DefaultTokenTTL,
		KeyID:      c.KeyID,
		Now:        c.Now,
	}

	switch {
	case hasHMAC && hasRSA:
		return nil, fmt.Errorf("%w: HMACSecret and RSAPrivateKeyPEM are mutually exclusive", ErrInvalidConfig)
	case hasHMAC:
		return token.NewHMAC(c.HMACSecret, tokenConfig)
	case hasRSA:
		return token.NewRSA(c.RSAPrivateKeyPEM, tokenConfig)
	default:
		return nil, fmt.Errorf("%w: no signing key configured", ErrInvalidConfig)
	}
}

// clock returns the configured time source
func (c *Config) clock() func() time.Time {
	if c.Now != nil {
		return c.Now
	}
	return time.Now
}
