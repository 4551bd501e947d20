package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// header is the subset of the JOSE header inspected before verification
type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
	Kid string `json:"kid,omitempty"`
}

// ValidateJWTToken verifies a token and returns its claims.
//
// Checks run in a fixed order and the first failure is reported:
//  1. structure: three non-empty base64url segments with a JSON header (ReasonMalformed)
//  2. algorithm: the header alg must equal the manager's algorithm (ReasonAlgorithmNotAllowed)
//  3. signature over the first two segments (ReasonSignatureInvalid)
//  4. payload: JSON claims with an exp (ReasonMalformed)
//  5. expiry: valid only while now < exp (ReasonExpired)
//  6. issuer and audience (ReasonIssuerMismatch, ReasonAudienceMismatch)
//
// The payload is not decoded until the signature has been verified.
func (m *Manager) ValidateJWTToken(tokenString string) (*Claims, error) {
	// Single clock read so every time check in this call agrees
	now := m.config.Now()

	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, newValidationError(ReasonMalformed, fmt.Errorf("expected 3 segments, got %d", len(parts)))
	}
	for i, p := range parts {
		if p == "" {
			return nil, newValidationError(ReasonMalformed, fmt.Errorf("segment %d is empty", i))
		}
	}

	decoder := jwt.NewParser(jwt.WithStrictDecoding())

	headerBytes, err := decoder.DecodeSegment(parts[0])
	if err != nil {
		return nil, newValidationError(ReasonMalformed, fmt.Errorf("decode header: %w", err))
	}
	var h header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return nil, newValidationError(ReasonMalformed, fmt.Errorf("parse header: %w", err))
	}

	// SECURITY: the algorithm is pinned by the manager, never chosen by the token.
	// This rejects "none" and HS256/RS256 key confusion.
	if h.Alg != m.method.Alg() {
		return nil, newValidationError(ReasonAlgorithmNotAllowed, fmt.Errorf("alg %q", h.Alg))
	}

	signature, err := decoder.DecodeSegment(parts[2])
	if err != nil {
		return nil, newValidationError(ReasonSignatureInvalid, fmt.Errorf("decode signature: %w", err))
	}

	signingInput := parts[0] + "." + parts[1]
	if err := m.method.Verify(signingInput, signature, m.verifyKey); err != nil {
		return nil, newValidationError(ReasonSignatureInvalid, err)
	}

	payload, err := decoder.DecodeSegment(parts[1])
	if err != nil {
		return nil, newValidationError(ReasonMalformed, fmt.Errorf("decode payload: %w", err))
	}
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, newValidationError(ReasonMalformed, fmt.Errorf("parse claims: %w", err))
	}
	if claims.Subject == "" {
		return nil, newValidationError(ReasonMalformed, errors.New("missing sub claim"))
	}

	validator := jwt.NewValidator(
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err := validator.Validate(claims); err != nil {
		return nil, classifyClaimsError(err)
	}

	if claims.Scopes == nil {
		claims.Scopes = []string{}
	}
	return claims, nil
}

// classifyClaimsError maps a jwt validator error to a single reason.
// Expiry wins over issuer which wins over audience.
func classifyClaimsError(err error) *ValidationError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return newValidationError(ReasonExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return newValidationError(ReasonIssuerMismatch, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return newValidationError(ReasonAudienceMismatch, err)
	default:
		return newValidationError(ReasonMalformed, err)
	}
}

// PeekClaims decodes the payload of a token WITHOUT verifying it.
// Only use the result for routing or logging, never for authorization.
func PeekClaims(tokenString string) (*Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, newValidationError(ReasonMalformed, fmt.Errorf("expected 3 segments, got %d", len(parts)))
	}
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, newValidationError(ReasonMalformed, err)
	}
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, newValidationError(ReasonMalformed, err)
	}
	return claims, nil
}

// LooksLikeJWT reports whether s has the three-segment compact shape of a JWT
func LooksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2
}
