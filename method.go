package authframework

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/token"
)

// MethodKind identifies one of the supported authentication methods
type MethodKind string

const (
	// MethodKindJWT issues self-contained JWT bearer tokens
	MethodKindJWT MethodKind = "jwt"
)

// valid reports whether k belongs to the supported set
func (k MethodKind) valid() bool {
	switch k {
	case MethodKindJWT:
		return true
	default:
		return false
	}
}

// TokenTypeBearer is the token_type of every token issued by the framework
const TokenTypeBearer = "Bearer"

// Method is an authentication method that can be registered with the framework.
//
// The set of methods is closed: only types in this package implement Method.
type Method interface {
	// Kind returns the method's kind
	Kind() MethodKind

	// Initialize prepares the method with the framework's token manager.
	// It is called once from Framework.Initialize.
	Initialize(ctx context.Context, tokens *token.Manager) error

	// IssueToken issues a token for subject carrying scopes
	IssueToken(ctx context.Context, subject string, scopes []string, ttl time.Duration) (*oauth2.Token, *token.Claims, error)

	sealed()
}

// IssueOption customizes a single CreateAuthToken call
type IssueOption func(*issueOptions)

type issueOptions struct {
	ttl    time.Duration
	ttlSet bool
}

// WithTTL sets the lifetime of the issued token. A zero TTL yields a token
// that is already expired; a negative TTL is rejected.
func WithTTL(ttl time.Duration) IssueOption {
	return func(o *issueOptions) {
		o.ttl = ttl
		o.ttlSet = true
	}
}

// ====================
// JWT method
// ====================

// JWTMethod issues JWT access tokens through the framework's token manager
type JWTMethod struct {
	tokens *token.Manager
}

// NewJWTMethod creates a JWT method. It is usable after Framework.Initialize.
func NewJWTMethod() *JWTMethod {
	return &JWTMethod{}
}

// Kind returns MethodKindJWT
func (m *JWTMethod) Kind() MethodKind {
	return MethodKindJWT
}

func (m *JWTMethod) sealed() {}

// Initialize checks that the token manager can sign and verify by issuing a
// probe token and validating it
func (m *JWTMethod) Initialize(_ context.Context, tokens *token.Manager) error {
	if tokens == nil {
		return fmt.Errorf("%w: token manager is required", ErrInvalidConfig)
	}
	if !tokens.CanSign() {
		return token.ErrNoSigningKey
	}

	probe, err := tokens.CreateJWTToken("auth-framework-initialization-probe", nil)
	if err != nil {
		return fmt.Errorf("signing probe failed: %w", err)
	}
	if _, err := tokens.ValidateJWTToken(probe); err != nil {
		return fmt.Errorf("verification probe failed: %w", err)
	}

	m.tokens = tokens
	return nil
}

// IssueToken signs a JWT and wraps it as a bearer token. The space-joined
// scopes are available through Extra("scope").
func (m *JWTMethod) IssueToken(_ context.Context, subject string, scopes []string, ttl time.Duration) (*oauth2.Token, *token.Claims, error) {
	if m.tokens == nil {
		return nil, nil, ErrNotInitialized
	}

	signed, claims, err := m.tokens.IssueJWTToken(subject, scopes, ttl)
	if err != nil {
		return nil, nil, err
	}

	return newBearerToken(signed, claims), claims, nil
}

// newBearerToken wraps a signed JWT in an oauth2.Token
func newBearerToken(signed string, claims *token.Claims) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		Expiry:      claims.Expiry(),
	}
	return tok.WithExtra(map[string]any{
		"scope": util.JoinScopes(claims.Scopes),
	})
}
