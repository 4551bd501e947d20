package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/auth-framework/instrumentation"
	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/revocation"
	"github.com/giantswarm/auth-framework/security"
	"github.com/giantswarm/auth-framework/token"
)

// Token type hints (RFC 7009 Section 2.1)
const (
	TokenTypeHintAccessToken  = "access_token"
	TokenTypeHintRefreshToken = "refresh_token"
)

// RevokeToken revokes an access or refresh token (RFC 7009). Access tokens
// are added to the revocation list until they expire; refresh tokens are
// deleted together with their family. Unknown or invalid tokens are not an
// error.
func (s *Server) RevokeToken(ctx context.Context, tok string) (err error) {
	ctx, span := s.startSpan(ctx, "server.revoke_token")
	defer func() { instrumentation.EndSpan(span, err) }()

	if tok == "" {
		return errInvalidRequest("token is required")
	}

	if token.LooksLikeJWT(tok) {
		return s.revokeAccessToken(ctx, tok)
	}
	return s.revokeRefreshToken(ctx, tok)
}

func (s *Server) revokeAccessToken(ctx context.Context, tok string) error {
	claims, err := s.tokens.ValidateJWTToken(tok)
	if err != nil {
		s.Logger.Debug("Ignoring revocation of invalid access token", "reason", token.ReasonOf(err))
		return nil
	}
	if claims.ID == "" {
		return nil
	}

	if err := s.revocations.Revoke(ctx, claims.ID, claims.Expiry()); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}

	if m := s.metrics(); m != nil {
		m.RecordTokenRevocation(ctx, TokenTypeHintAccessToken)
	}
	s.Auditor.LogTokenRevoked(ctx, claims.Subject, "", TokenTypeHintAccessToken)
	return nil
}

func (s *Server) revokeRefreshToken(ctx context.Context, tok string) error {
	var record refreshRecord
	found, err := s.takeRecord(ctx, credentialKey(namespaceRefresh, tok), &record)
	if err != nil {
		return err
	}
	if !found {
		s.Logger.Debug("Ignoring revocation of unknown token", "token_prefix", util.SafeTruncate(tok, 8))
		return nil
	}

	if err := s.revokeFamily(ctx, record.FamilyID); err != nil {
		return fmt.Errorf("failed to revoke refresh token family: %w", err)
	}

	if m := s.metrics(); m != nil {
		m.RecordTokenRevocation(ctx, TokenTypeHintRefreshToken)
	}
	s.Auditor.LogTokenRevoked(ctx, record.Subject, record.ClientID, TokenTypeHintRefreshToken)
	return nil
}

// ValidateAccessToken verifies an access token issued by this server and
// checks it against the revocation list
func (s *Server) ValidateAccessToken(ctx context.Context, tok string) (*token.Claims, error) {
	claims, err := s.tokens.ValidateJWTToken(tok)
	if err != nil {
		reason := string(token.ReasonOf(err))
		if m := s.metrics(); m != nil {
			m.RecordTokenValidation(ctx, reason)
		}
		s.Auditor.LogTokenValidationFailed(ctx, reason)
		oauthErr := errInvalidToken("access token is invalid")
		oauthErr.Err = errors.Join(ErrInvalidToken, err)
		return nil, oauthErr
	}

	if claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			if m := s.metrics(); m != nil {
				m.RecordTokenValidation(ctx, "revoked")
			}
			s.Auditor.LogEvent(ctx, security.Event{
				Type:    security.EventRevokedTokenPresented,
				Subject: claims.Subject,
			})
			oauthErr := errInvalidToken("access token has been revoked")
			oauthErr.Err = errors.Join(ErrInvalidToken, revocation.ErrTokenRevoked)
			return nil, oauthErr
		}
	}

	if m := s.metrics(); m != nil {
		m.RecordTokenValidation(ctx, "")
	}
	return claims, nil
}
