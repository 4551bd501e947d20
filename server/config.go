package server

import (
	"log/slog"
	"time"

	"github.com/giantswarm/auth-framework/token"
)

// Default lifetimes
const (
	DefaultAuthorizationCodeTTL = 10 * time.Minute
	DefaultAccessTokenTTL       = time.Hour
	DefaultRefreshTokenTTL      = 30 * 24 * time.Hour
)

// Config holds OAuth server configuration
type Config struct {
	// Issuer is the server's issuer identifier (base URL).
	// Defaults to the token manager's issuer.
	Issuer string

	// Audience is the aud claim of issued access tokens.
	// Defaults to the token manager's audience.
	Audience string

	// TokenManager signs and verifies access tokens. When nil an HS256
	// manager with an ephemeral random key is created; tokens then do not
	// survive a restart.
	TokenManager *token.Manager

	// AuthorizationCodeTTL is how long authorization codes are valid
	// Default: 10 minutes
	AuthorizationCodeTTL time.Duration

	// AccessTokenTTL is how long access tokens are valid
	// Default: 1 hour
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is how long refresh tokens are valid
	// Default: 30 days
	RefreshTokenTTL time.Duration

	// AllowRefreshTokenRotation enables refresh token rotation (OAuth 2.1)
	// Default: true (secure by default)
	AllowRefreshTokenRotation bool

	// RequirePKCE enforces PKCE for all authorization requests. Public
	// clients always need PKCE regardless of this setting.
	// Default: true
	RequirePKCE bool

	// AllowPKCEPlain allows the 'plain' code_challenge_method (NOT RECOMMENDED)
	// WARNING: The 'plain' method is insecure and deprecated in OAuth 2.1
	// Default: false
	AllowPKCEPlain bool

	// SupportedScopes lists the scopes that may be requested.
	// If empty, all scopes are allowed.
	SupportedScopes []string

	// Now overrides the clock (tests). Default: time.Now
	Now func() time.Time
}

// applySecureDefaults applies secure-by-default configuration values
// This follows the principle: secure by default, opt-in for less secure options
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	applyTimeDefaults(config)
	applySecurityDefaults(config, logger)
	return config
}

// applyTimeDefaults sets default values for time-based configuration
func applyTimeDefaults(config *Config) {
	if config.AuthorizationCodeTTL <= 0 {
		config.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if config.AccessTokenTTL <= 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL <= 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
}

// applySecurityDefaults sets secure defaults for security-related configuration
// Uses a heuristic to detect if config is new (all security bools false) vs explicitly configured
func applySecurityDefaults(config *Config, logger *slog.Logger) {
	isDefaultConfig := !config.AllowRefreshTokenRotation &&
		!config.RequirePKCE &&
		!config.AllowPKCEPlain

	if isDefaultConfig {
		config.AllowRefreshTokenRotation = true
		config.RequirePKCE = true
		config.AllowPKCEPlain = false
		return
	}

	logSecurityWarnings(config, logger)
}

// logSecurityWarnings logs warnings for insecure configuration settings
func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if !config.RequirePKCE {
		logger.Warn("SECURITY WARNING: PKCE is not required for confidential clients",
			"risk", "Authorization code interception attacks",
			"recommendation", "Set RequirePKCE=true for OAuth 2.1 compliance")
	}
	if config.AllowPKCEPlain {
		logger.Warn("SECURITY WARNING: Plain PKCE method is ALLOWED",
			"risk", "Weak code challenge protection",
			"recommendation", "Set AllowPKCEPlain=false to require S256")
	}
	if !config.AllowRefreshTokenRotation {
		logger.Warn("SECURITY WARNING: Refresh token rotation is DISABLED",
			"risk", "Stolen refresh tokens stay usable until they expire",
			"recommendation", "Set AllowRefreshTokenRotation=true")
	}
}
