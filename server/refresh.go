package server

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/giantswarm/auth-framework/instrumentation"
	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/security"
)

// RefreshToken redeems a refresh token for a new access token. With rotation
// enabled the presented token is consumed and replaced; presenting a rotated
// token again revokes its whole family (OAuth 2.1 Section 6.1).
func (s *Server) RefreshToken(ctx context.Context, refreshToken, clientID, clientSecret string) (tok *oauth2.Token, err error) {
	ctx, span := s.startSpan(ctx, "server.refresh_token")
	defer func() { instrumentation.EndSpan(span, err) }()

	client, err := s.ValidateClientCredentials(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if !client.HasGrantType(GrantTypeRefreshToken) {
		return nil, errUnauthorizedClient("client is not registered for the refresh_token grant")
	}
	if refreshToken == "" {
		return nil, errInvalidRequest("refresh_token is required")
	}

	key := credentialKey(namespaceRefresh, refreshToken)
	var record refreshRecord
	found, err := s.takeRecord(ctx, key, &record)
	if err != nil {
		return nil, err
	}
	if !found {
		s.detectRefreshReuse(ctx, refreshToken, client.ClientID)
		s.Logger.Debug("Refresh token not found",
			"client_id", client.ClientID,
			"token_prefix", util.SafeTruncate(refreshToken, 8))
		return nil, errInvalidGrant()
	}

	now := s.Config.Now()
	if !now.Before(record.ExpiresAt) {
		s.Logger.Debug("Refresh token expired", "client_id", client.ClientID)
		return nil, errInvalidGrant()
	}
	if record.ClientID != client.ClientID {
		s.Auditor.LogAuthFailure(ctx, record.Subject, client.ClientID, "refresh_client_mismatch")
		s.Logger.Debug("Refresh token client mismatch", "client_id", client.ClientID)
		return nil, errInvalidGrant()
	}

	var family refreshFamily
	found, err = s.getRecord(ctx, familyKey(record.FamilyID), &family)
	if err != nil {
		return nil, err
	}
	if !found || family.Revoked || family.CurrentKey != key {
		s.Logger.Debug("Refresh token family revoked", "client_id", client.ClientID)
		return nil, errInvalidGrant()
	}

	rotate := s.Config.AllowRefreshTokenRotation
	var issued *issuedTokens
	if rotate {
		issued, err = s.mintTokens(ctx, client, record.Subject, record.Scopes, record.FamilyID, record.Generation+1)
		if err != nil {
			return nil, err
		}
		marker := usedRefresh{
			ClientID: client.ClientID,
			Subject:  record.Subject,
			FamilyID: record.FamilyID,
		}
		if err := s.putRecord(ctx, credentialKey(namespaceRefreshUsed, refreshToken), marker, remaining(now, record.ExpiresAt)); err != nil {
			return nil, err
		}
	} else {
		issued, err = s.reissueAccessToken(ctx, key, &record, &family, refreshToken)
		if err != nil {
			return nil, err
		}
	}

	if m := s.metrics(); m != nil {
		m.RecordTokenRefresh(ctx, client.ClientID, rotate)
		m.RecordTokenIssued(ctx, GrantTypeRefreshToken, s.tokens.Algorithm())
	}
	instrumentation.AddOAuthFlowAttributes(span, client.ClientID, "", util.JoinScopes(record.Scopes))
	s.Auditor.LogTokenRefreshed(ctx, record.Subject, client.ClientID, rotate)

	return s.tokenResponse(issued), nil
}

// reissueAccessToken mints an access token and puts the taken refresh record
// back unchanged
func (s *Server) reissueAccessToken(ctx context.Context, key string, record *refreshRecord, family *refreshFamily, refreshToken string) (*issuedTokens, error) {
	access, claims, err := s.tokens.IssueJWTToken(record.Subject, record.Scopes, s.Config.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	ttl := remaining(s.Config.Now(), record.ExpiresAt)
	if err := s.putRecord(ctx, key, record, ttl); err != nil {
		return nil, err
	}
	family.AccessTokenID = claims.ID
	family.AccessExpiresAt = claims.Expiry()
	if err := s.putRecord(ctx, familyKey(record.FamilyID), family, ttl); err != nil {
		return nil, err
	}

	return &issuedTokens{
		access:   access,
		claims:   claims,
		refresh:  refreshToken,
		familyID: record.FamilyID,
	}, nil
}

// detectRefreshReuse revokes the family of a rotated refresh token presented again
func (s *Server) detectRefreshReuse(ctx context.Context, refreshToken, clientID string) {
	var used usedRefresh
	found, err := s.getRecord(ctx, credentialKey(namespaceRefreshUsed, refreshToken), &used)
	if err != nil {
		s.Logger.Warn("Failed to check refresh token reuse", "error", err)
		return
	}
	if !found {
		return
	}

	if err := s.revokeFamily(ctx, used.FamilyID); err != nil {
		s.Logger.Error("Failed to revoke refresh token family", "error", err)
	}

	if m := s.metrics(); m != nil {
		m.RecordTokenReuseDetected(ctx)
	}
	s.Auditor.LogEvent(ctx, security.Event{
		Type:     security.EventRefreshTokenReuseDetected,
		Subject:  used.Subject,
		ClientID: clientID,
		Details: map[string]any{
			"family_id": used.FamilyID,
		},
	})

	if s.allowSecurityLog(used.Subject + ":" + used.ClientID) {
		s.Logger.Error("Refresh token reuse detected, token family revoked",
			"client_id", clientID,
			"family_id", used.FamilyID)
	}
}
