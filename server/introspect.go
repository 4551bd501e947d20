package server

import (
	"context"
	"errors"

	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/token"
)

// Introspection is a token introspection response (RFC 7662 Section 2.2)
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Subject   string `json:"sub,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	Audience  string `json:"aud,omitempty"`
	TokenID   string `json:"jti,omitempty"`
}

// Introspect reports whether a token is active and what it grants. Any
// invalid, expired, revoked or unknown token yields Active == false; only
// storage failures are returned as errors.
func (s *Server) Introspect(ctx context.Context, tok string) (*Introspection, error) {
	if tok == "" {
		return &Introspection{}, nil
	}
	if token.LooksLikeJWT(tok) {
		return s.introspectAccessToken(ctx, tok)
	}
	return s.introspectRefreshToken(ctx, tok)
}

func (s *Server) introspectAccessToken(ctx context.Context, tok string) (*Introspection, error) {
	claims, err := s.ValidateAccessToken(ctx, tok)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return &Introspection{}, nil
		}
		return nil, err
	}

	info := &Introspection{
		Active:    true,
		Scope:     util.JoinScopes(claims.Scopes),
		Subject:   claims.Subject,
		TokenType: "Bearer",
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
		TokenID:   claims.ID,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Unix()
	}
	return info, nil
}

func (s *Server) introspectRefreshToken(ctx context.Context, tok string) (*Introspection, error) {
	key := credentialKey(namespaceRefresh, tok)
	var record refreshRecord
	found, err := s.getRecord(ctx, key, &record)
	if err != nil {
		return nil, err
	}
	if !found || !s.Config.Now().Before(record.ExpiresAt) {
		return &Introspection{}, nil
	}

	var family refreshFamily
	found, err = s.getRecord(ctx, familyKey(record.FamilyID), &family)
	if err != nil {
		return nil, err
	}
	if !found || family.Revoked || family.CurrentKey != key {
		return &Introspection{}, nil
	}

	return &Introspection{
		Active:    true,
		Scope:     util.JoinScopes(record.Scopes),
		ClientID:  record.ClientID,
		Subject:   record.Subject,
		TokenType: TokenTypeHintRefreshToken,
		ExpiresAt: record.ExpiresAt.Unix(),
		IssuedAt:  record.IssuedAt.Unix(),
		Issuer:    s.Config.Issuer,
	}, nil
}
