// Package token creates and validates signed JWTs.
//
// A Manager is bound to one algorithm (HS256 with a shared secret, or RS256
// with an RSA key pair), one issuer and one audience. Tokens carry the
// subject, the granted scopes, iat, exp and a random jti:
//
//	m, err := token.NewHMAC(secret, token.Config{
//		Issuer:   "https://auth.example.com",
//		Audience: "https://api.example.com",
//	})
//	signed, err := m.CreateJWTToken("alice", []string{"read:docs"})
//	claims, err := m.ValidateJWTToken(signed)
//
// Validation failures are *ValidationError values with a stable Reason and
// match the corresponding sentinel (ErrExpired, ErrSignatureInvalid, ...)
// through errors.Is. Only the manager's own algorithm is accepted, so
// "alg: none" and algorithm-substitution tokens are rejected before any
// signature check.
//
// RS256 managers publish their public key with JWKS(). A verify-only
// manager can be built from a PEM public key or from a JWKS document.
package token
