package server

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/auth-framework/instrumentation"
	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/security"
)

// TokenRequest is a token endpoint request
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	RefreshToken string
}

// Token dispatches a token endpoint request on its grant type
func (s *Server) Token(ctx context.Context, req TokenRequest) (*oauth2.Token, error) {
	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		return s.ExchangeCode(ctx, req)
	case GrantTypeRefreshToken:
		return s.RefreshToken(ctx, req.RefreshToken, req.ClientID, req.ClientSecret)
	case "":
		return nil, errInvalidRequest("grant_type is required")
	default:
		return nil, NewOAuthError(ErrorCodeUnsupportedGrantType, "unsupported grant_type", http.StatusBadRequest, ErrInvalidRequest)
	}
}

// ExchangeCode redeems an authorization code for an access token and, when the
// client registered for it, a refresh token.
//
// SECURITY: the code is removed from storage before it is checked, so it can
// be redeemed at most once even under concurrent requests. Presenting an
// already redeemed code revokes the tokens minted from it (RFC 6749 Section 4.1.2).
func (s *Server) ExchangeCode(ctx context.Context, req TokenRequest) (tok *oauth2.Token, err error) {
	ctx, span := s.startSpan(ctx, "server.exchange_code")
	defer func() { instrumentation.EndSpan(span, err) }()

	client, err := s.ValidateClientCredentials(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	if !client.HasGrantType(GrantTypeAuthorizationCode) {
		return nil, errUnauthorizedClient("client is not registered for the authorization_code grant")
	}
	if req.Code == "" {
		return nil, errInvalidRequest("code is required")
	}

	var grant AuthorizationGrant
	found, err := s.takeRecord(ctx, credentialKey(namespaceAuthCode, req.Code), &grant)
	if err != nil {
		return nil, err
	}
	if !found {
		s.detectCodeReuse(ctx, req.Code, client.ClientID)
		s.Logger.Debug("Authorization code not found",
			"client_id", client.ClientID,
			"code_prefix", util.SafeTruncate(req.Code, 8))
		return nil, errInvalidGrant()
	}

	if !s.Config.Now().Before(grant.ExpiresAt) {
		s.Logger.Debug("Authorization code expired",
			"client_id", client.ClientID,
			"code_prefix", util.SafeTruncate(req.Code, 8))
		return nil, errInvalidGrant()
	}
	if grant.ClientID != client.ClientID {
		s.Auditor.LogAuthFailure(ctx, grant.Subject, client.ClientID, "code_client_mismatch")
		s.Logger.Debug("Authorization code client mismatch",
			"client_id", client.ClientID,
			"code_prefix", util.SafeTruncate(req.Code, 8))
		return nil, errInvalidGrant()
	}
	if grant.RedirectURI != req.RedirectURI {
		s.Logger.Debug("Authorization code redirect_uri mismatch",
			"client_id", client.ClientID,
			"code_prefix", util.SafeTruncate(req.Code, 8))
		return nil, errInvalidGrant()
	}
	if err := s.verifyGrantPKCE(ctx, &grant, req.CodeVerifier); err != nil {
		return nil, err
	}

	issued, err := s.mintTokens(ctx, client, grant.Subject, grant.Scopes, "", 0)
	if err != nil {
		return nil, err
	}

	marker := consumedGrant{
		ClientID:        client.ClientID,
		Subject:         grant.Subject,
		AccessTokenID:   issued.claims.ID,
		AccessExpiresAt: issued.claims.Expiry(),
		RefreshFamilyID: issued.familyID,
	}
	if err := s.putRecord(ctx, credentialKey(namespaceAuthCodeUsed, req.Code), marker, s.consumedGrantTTL()); err != nil {
		return nil, err
	}

	if m := s.metrics(); m != nil {
		m.RecordCodeExchange(ctx, client.ClientID, grant.CodeChallengeMethod)
		m.RecordTokenIssued(ctx, GrantTypeAuthorizationCode, s.tokens.Algorithm())
	}
	instrumentation.AddOAuthFlowAttributes(span, client.ClientID, "", util.JoinScopes(grant.Scopes))
	s.Auditor.LogTokenIssued(ctx, grant.Subject, client.ClientID, GrantTypeAuthorizationCode, util.JoinScopes(grant.Scopes))

	return s.tokenResponse(issued), nil
}

// consumedGrantTTL keeps the consumed marker while tokens minted from the
// code can still be used
func (s *Server) consumedGrantTTL() time.Duration {
	return max(s.Config.AccessTokenTTL, s.Config.AuthorizationCodeTTL)
}

// verifyGrantPKCE checks the code_verifier against the grant. The grant is
// already consumed, so a failed attempt burns the code.
func (s *Server) verifyGrantPKCE(ctx context.Context, grant *AuthorizationGrant, verifier string) error {
	if grant.CodeChallenge == "" {
		if verifier != "" {
			// A verifier without a stored challenge signals a downgrade attempt
			return errPKCEMismatch()
		}
		return nil
	}

	if err := s.validatePKCE(grant.CodeChallenge, grant.CodeChallengeMethod, verifier); err != nil {
		if m := s.metrics(); m != nil {
			m.RecordPKCEValidationFailed(ctx, grant.CodeChallengeMethod)
		}
		s.Auditor.LogEvent(ctx, security.Event{
			Type:     security.EventPKCEValidationFailed,
			Subject:  grant.Subject,
			ClientID: grant.ClientID,
			Details: map[string]any{
				"method": grant.CodeChallengeMethod,
				"reason": err.Error(),
			},
		})
		s.Logger.Debug("PKCE validation failed",
			"client_id", grant.ClientID,
			"error", err)
		return errPKCEMismatch()
	}
	return nil
}

// detectCodeReuse revokes the tokens minted from code if it was redeemed before
func (s *Server) detectCodeReuse(ctx context.Context, code, clientID string) {
	var consumed consumedGrant
	found, err := s.getRecord(ctx, credentialKey(namespaceAuthCodeUsed, code), &consumed)
	if err != nil {
		s.Logger.Warn("Failed to check authorization code reuse", "error", err)
		return
	}
	if !found {
		return
	}

	// SECURITY: revoke regardless of which client replayed the code
	if err := s.revocations.Revoke(ctx, consumed.AccessTokenID, consumed.AccessExpiresAt); err != nil {
		s.Logger.Error("Failed to revoke access token after code reuse", "error", err)
	}
	if consumed.RefreshFamilyID != "" {
		if err := s.revokeFamily(ctx, consumed.RefreshFamilyID); err != nil {
			s.Logger.Error("Failed to revoke refresh tokens after code reuse", "error", err)
		}
	}

	if m := s.metrics(); m != nil {
		m.RecordCodeReuseDetected(ctx)
	}
	s.Auditor.LogEvent(ctx, security.Event{
		Type:     security.EventAuthorizationCodeReuseDetected,
		Subject:  consumed.Subject,
		ClientID: clientID,
		Details: map[string]any{
			"issued_to": consumed.ClientID,
		},
	})

	if s.allowSecurityLog(consumed.Subject + ":" + consumed.ClientID) {
		s.Logger.Error("Authorization code reuse detected, derived tokens revoked",
			"client_id", clientID,
			"issued_to", consumed.ClientID,
			"code_prefix", util.SafeTruncate(code, 8))
	}
}
