package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/giantswarm/auth-framework/internal/util"
)

// PKCE validation constants (RFC 7636)
const (
	MinCodeVerifierLength = 43
	MaxCodeVerifierLength = 128
	PKCEMethodS256        = "S256"
	PKCEMethodPlain       = "plain"
)

// isPKCECharset reports whether s only holds [A-Za-z0-9-._~] (RFC 7636 Section 4.1)
func isPKCECharset(s string) bool {
	for _, ch := range s {
		isValid := (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.' || ch == '_' || ch == '~'
		if !isValid {
			return false
		}
	}
	return true
}

// validateCodeChallenge checks a code_challenge at authorization time and
// returns the effective method. RFC 7636 defaults an absent method to plain.
func (s *Server) validateCodeChallenge(challenge, method string) (string, error) {
	if method == "" {
		method = PKCEMethodPlain
	}

	switch method {
	case PKCEMethodS256:
	case PKCEMethodPlain:
		if !s.Config.AllowPKCEPlain {
			return "", fmt.Errorf("'%s' code_challenge_method is not allowed", PKCEMethodPlain)
		}
	default:
		return "", fmt.Errorf("unsupported code_challenge_method: %s", method)
	}

	// The challenge has the same syntax as a verifier: a base64url S256
	// digest is exactly 43 characters
	if len(challenge) < MinCodeVerifierLength || len(challenge) > MaxCodeVerifierLength {
		return "", fmt.Errorf("code_challenge must be %d-%d characters", MinCodeVerifierLength, MaxCodeVerifierLength)
	}
	if !isPKCECharset(challenge) {
		return "", fmt.Errorf("code_challenge contains invalid characters (must be [A-Za-z0-9-._~])")
	}
	return method, nil
}

// validatePKCE validates the PKCE code verifier against the challenge per RFC 7636
func (s *Server) validatePKCE(challenge, method, verifier string) error {
	if verifier == "" {
		return fmt.Errorf("code_verifier is required when code_challenge is present")
	}

	// RFC 7636: code_verifier must be 43-128 characters
	if len(verifier) < MinCodeVerifierLength {
		return fmt.Errorf("code_verifier must be at least %d characters (RFC 7636)", MinCodeVerifierLength)
	}
	if len(verifier) > MaxCodeVerifierLength {
		return fmt.Errorf("code_verifier must be at most %d characters (RFC 7636)", MaxCodeVerifierLength)
	}

	// SECURITY: also rejects null bytes, control characters and non-ASCII input
	if !isPKCECharset(verifier) {
		return fmt.Errorf("code_verifier contains invalid characters (must be [A-Za-z0-9-._~])")
	}

	var computedChallenge string
	switch method {
	case PKCEMethodS256:
		hash := sha256.Sum256([]byte(verifier))
		computedChallenge = base64.RawURLEncoding.EncodeToString(hash[:])

	case PKCEMethodPlain:
		// Re-checked at redemption: the setting may have changed since the code was issued
		if !s.Config.AllowPKCEPlain {
			return fmt.Errorf("'%s' code_challenge_method is not allowed", PKCEMethodPlain)
		}
		computedChallenge = verifier
		s.Logger.Warn("Using insecure 'plain' PKCE method",
			"recommendation", "Upgrade client to use S256")

	default:
		return fmt.Errorf("unsupported code_challenge_method: %s", method)
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(computedChallenge), []byte(challenge)) != 1 {
		return fmt.Errorf("code_verifier does not match code_challenge")
	}

	return nil
}

// validateScopes validates that requested scopes are supported by the server
func (s *Server) validateScopes(scopes []string) error {
	// If no scopes configured, allow all
	if len(s.Config.SupportedScopes) == 0 {
		return nil
	}

	for _, scope := range scopes {
		if !util.Contains(s.Config.SupportedScopes, scope) {
			return errInvalidScope(fmt.Sprintf("unsupported scope: %s", scope))
		}
	}
	return nil
}

// validateClientScopes validates that requested scopes are allowed for the specific client.
// A client registered without scopes may request any scope the server supports.
func (s *Server) validateClientScopes(scopes []string, client *Client) error {
	if err := s.validateScopes(scopes); err != nil {
		return err
	}
	if len(client.Scopes) == 0 {
		return nil
	}
	if !util.ContainsAll(client.Scopes, scopes) {
		// SECURITY: Don't reveal which specific scopes are unauthorized to prevent enumeration
		return errInvalidScope("client is not authorized for one or more requested scopes")
	}
	return nil
}
