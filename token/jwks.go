package token

import (
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// Thumbprint returns the base64url RFC 7638 SHA-256 thumbprint of an RSA public key
func Thumbprint(pub *rsa.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	sum, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("%w: thumbprint: %v", ErrInvalidKey, err)
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}

// JWKS returns the public verification key as a JSON Web Key Set.
// HMAC managers have no publishable key and return an empty set.
func (m *Manager) JWKS() jose.JSONWebKeySet {
	pub, ok := m.verifyKey.(*rsa.PublicKey)
	if !ok {
		return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}
	}
	return jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       pub,
			KeyID:     m.config.KeyID,
			Algorithm: m.method.Alg(),
			Use:       "sig",
		}},
	}
}

// MarshalJWKS returns the JSON encoding of JWKS()
func (m *Manager) MarshalJWKS() ([]byte, error) {
	return json.Marshal(m.JWKS())
}

// NewRSAVerifierFromJWKS creates a verify-only RS256 manager from a JWKS document.
// If kid is empty the set must hold exactly one key.
func NewRSAVerifierFromJWKS(jwksJSON []byte, kid string, config Config) (*Manager, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(jwksJSON, &set); err != nil {
		return nil, newSigningError("load key", fmt.Errorf("%w: parse JWKS: %v", ErrInvalidKey, err))
	}

	var candidates []jose.JSONWebKey
	if kid != "" {
		candidates = set.Key(kid)
	} else {
		candidates = set.Keys
	}
	if len(candidates) != 1 {
		return nil, newSigningError("load key",
			fmt.Errorf("%w: expected exactly one matching key in JWKS, found %d", ErrInvalidKey, len(candidates)))
	}

	jwk := candidates[0]
	if jwk.Algorithm != "" && jwk.Algorithm != AlgorithmRS256 {
		return nil, newSigningError("load key", fmt.Errorf("%w: JWK algorithm %q is not RS256", ErrInvalidKey, jwk.Algorithm))
	}
	pub, ok := jwk.Key.(*rsa.PublicKey)
	if !ok {
		return nil, newSigningError("load key", fmt.Errorf("%w: JWK key is %T, not an RSA public key", ErrInvalidKey, jwk.Key))
	}

	if config.KeyID == "" {
		config.KeyID = jwk.KeyID
	}
	return newRSAVerifier(pub, config)
}
