package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Supported signing algorithms
const (
	AlgorithmHS256 = "HS256"
	AlgorithmRS256 = "RS256"
)

const (
	// DefaultTTL is the token lifetime used when none is given
	DefaultTTL = time.Hour

	// MinHMACSecretLength is the minimum HS256 secret size in bytes
	MinHMACSecretLength = 32
)

// Config holds the fixed issuance parameters of a Manager
type Config struct {
	// Issuer is written to and required in the iss claim
	Issuer string

	// Audience is written to and required in the aud claim
	Audience string

	// DefaultTTL is the lifetime of tokens created without an explicit TTL (default: 1 hour)
	DefaultTTL time.Duration

	// KeyID is placed in the kid header. For RSA keys it defaults to the
	// RFC 7638 thumbprint of the public key.
	KeyID string

	// Now is the clock used for iat/exp and validation (default: time.Now)
	Now func() time.Time
}

func (c *Config) applyDefaults() error {
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	if c.Audience == "" {
		return fmt.Errorf("audience is required")
	}
	if c.DefaultTTL < 0 {
		return ErrNegativeTTL
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// Manager creates and validates signed JWTs for one issuer/audience pair.
// Exactly one algorithm is accepted on validation: the one the manager signs with.
// A Manager is immutable after construction and safe for concurrent use.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   any // []byte or *rsa.PrivateKey, nil for verify-only managers
	verifyKey any // []byte or *rsa.PublicKey
}

// NewHMAC creates an HS256 manager. The secret must be at least 32 bytes.
func NewHMAC(secret []byte, config Config) (*Manager, error) {
	if len(secret) < MinHMACSecretLength {
		return nil, newSigningError("load key",
			fmt.Errorf("%w: HMAC secret must be at least %d bytes, got %d", ErrInvalidKey, MinHMACSecretLength, len(secret)))
	}
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}

	// Private copy so later mutation by the caller cannot change the key
	key := make([]byte, len(secret))
	copy(key, secret)

	return &Manager{
		config:    config,
		method:    jwt.SigningMethodHS256,
		signKey:   key,
		verifyKey: key,
	}, nil
}

// NewRSA creates an RS256 manager from a PEM private key (PKCS#1 or PKCS#8)
func NewRSA(privateKeyPEM []byte, config Config) (*Manager, error) {
	key, err := ParseRSAPrivateKeyPEM(privateKeyPEM)
	if err != nil {
		return nil, newSigningError("load key", err)
	}
	return NewRSAFromKey(key, config)
}

// NewRSAFromKey creates an RS256 manager from an already parsed private key
func NewRSAFromKey(key *rsa.PrivateKey, config Config) (*Manager, error) {
	if key == nil {
		return nil, newSigningError("load key", fmt.Errorf("%w: nil RSA key", ErrInvalidKey))
	}
	if err := key.Validate(); err != nil {
		return nil, newSigningError("load key", fmt.Errorf("%w: %v", ErrInvalidKey, err))
	}
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	if config.KeyID == "" {
		kid, err := Thumbprint(&key.PublicKey)
		if err != nil {
			return nil, newSigningError("load key", err)
		}
		config.KeyID = kid
	}

	return &Manager{
		config:    config,
		method:    jwt.SigningMethodRS256,
		signKey:   key,
		verifyKey: &key.PublicKey,
	}, nil
}

// NewRSAVerifier creates a verify-only RS256 manager from a PEM public key
// (PKIX "PUBLIC KEY" or PKCS#1 "RSA PUBLIC KEY"). Its Create methods fail with ErrNoSigningKey.
func NewRSAVerifier(publicKeyPEM []byte, config Config) (*Manager, error) {
	pub, err := ParseRSAPublicKeyPEM(publicKeyPEM)
	if err != nil {
		return nil, newSigningError("load key", err)
	}
	return newRSAVerifier(pub, config)
}

func newRSAVerifier(pub *rsa.PublicKey, config Config) (*Manager, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	if config.KeyID == "" {
		kid, err := Thumbprint(pub)
		if err != nil {
			return nil, newSigningError("load key", err)
		}
		config.KeyID = kid
	}
	return &Manager{
		config:    config,
		method:    jwt.SigningMethodRS256,
		verifyKey: pub,
	}, nil
}

// ParseRSAPrivateKeyPEM decodes a PKCS#1 or PKCS#8 PEM block holding an RSA private key
func ParseRSAPrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: PKCS#8 key is %T, not RSA", ErrInvalidKey, parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: unsupported PEM block type %q", ErrInvalidKey, block.Type)
	}
}

// ParseRSAPublicKeyPEM decodes a PKIX or PKCS#1 PEM block holding an RSA public key
func ParseRSAPublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return pub, nil
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: public key is %T, not RSA", ErrInvalidKey, parsed)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unsupported PEM block type %q", ErrInvalidKey, block.Type)
	}
}

// Algorithm returns the JWS algorithm name ("HS256" or "RS256")
func (m *Manager) Algorithm() string {
	return m.method.Alg()
}

// Issuer returns the configured issuer
func (m *Manager) Issuer() string {
	return m.config.Issuer
}

// Audience returns the configured audience
func (m *Manager) Audience() string {
	return m.config.Audience
}

// KeyID returns the kid header value ("" for HMAC managers without one)
func (m *Manager) KeyID() string {
	return m.config.KeyID
}

// DefaultTTL returns the lifetime applied when no TTL is given
func (m *Manager) DefaultTTL() time.Duration {
	return m.config.DefaultTTL
}

// CanSign reports whether the manager holds a signing key
func (m *Manager) CanSign() bool {
	return m.signKey != nil
}

// CreateJWTToken issues a token for subject with the default TTL
func (m *Manager) CreateJWTToken(subject string, scopes []string) (string, error) {
	signed, _, err := m.IssueJWTToken(subject, scopes, m.config.DefaultTTL)
	return signed, err
}

// CreateJWTTokenWithTTL issues a token for subject that expires ttl from now.
// A zero ttl yields a token that is already expired when validated.
func (m *Manager) CreateJWTTokenWithTTL(subject string, scopes []string, ttl time.Duration) (string, error) {
	signed, _, err := m.IssueJWTToken(subject, scopes, ttl)
	return signed, err
}

// IssueJWTToken issues a token and also returns the claims it carries.
// Every token gets a fresh random jti.
func (m *Manager) IssueJWTToken(subject string, scopes []string, ttl time.Duration) (string, *Claims, error) {
	if m.signKey == nil {
		return "", nil, newSigningError("sign", ErrNoSigningKey)
	}
	if subject == "" {
		return "", nil, ErrEmptySubject
	}
	if ttl < 0 {
		return "", nil, ErrNegativeTTL
	}

	now := m.config.Now()
	claimScopes := make([]string, len(scopes))
	copy(claimScopes, scopes)

	claims := &Claims{
		Subject:   subject,
		Issuer:    m.config.Issuer,
		Audience:  m.config.Audience,
		Scopes:    claimScopes,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	tok := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		tok.Header["kid"] = m.config.KeyID
	}

	signed, err := tok.SignedString(m.signKey)
	if err != nil {
		return "", nil, newSigningError("sign", err)
	}
	return signed, claims, nil
}
