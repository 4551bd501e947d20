package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/token"
)

// refreshRecord is stored under the digest of an opaque refresh token
type refreshRecord struct {
	ClientID   string    `json:"client_id"`
	Subject    string    `json:"sub"`
	Scopes     []string  `json:"scopes"`
	FamilyID   string    `json:"family_id"`
	Generation int       `json:"generation"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// refreshFamily links every refresh token rotated from one authorization
// grant. Only CurrentKey may be redeemed.
type refreshFamily struct {
	ClientID        string    `json:"client_id"`
	Subject         string    `json:"sub"`
	CurrentKey      string    `json:"current_key,omitempty"`
	AccessTokenID   string    `json:"jti,omitempty"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	Revoked         bool      `json:"revoked"`
}

// usedRefresh marks a rotated refresh token
type usedRefresh struct {
	ClientID string `json:"client_id"`
	Subject  string `json:"sub"`
	FamilyID string `json:"family_id"`
}

func familyKey(familyID string) string {
	return namespaceRefreshFamily + ":" + familyID
}

// issuedTokens is the outcome of a successful grant
type issuedTokens struct {
	access   string
	claims   *token.Claims
	refresh  string
	familyID string
}

// mintTokens signs an access token and, when the client may refresh, a new
// refresh token in familyID (a new family when empty)
func (s *Server) mintTokens(ctx context.Context, client *Client, subject string, scopes []string, familyID string, generation int) (*issuedTokens, error) {
	access, claims, err := s.tokens.IssueJWTToken(subject, scopes, s.Config.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	out := &issuedTokens{access: access, claims: claims}

	if !client.HasGrantType(GrantTypeRefreshToken) {
		return out, nil
	}

	if familyID == "" {
		familyID = uuid.NewString()
	}
	refresh := generateRandomToken()
	now := s.Config.Now()
	key := credentialKey(namespaceRefresh, refresh)

	record := refreshRecord{
		ClientID:   client.ClientID,
		Subject:    subject,
		Scopes:     scopes,
		FamilyID:   familyID,
		Generation: generation,
		IssuedAt:   now.UTC(),
		ExpiresAt:  now.Add(s.Config.RefreshTokenTTL).UTC(),
	}
	if err := s.putRecord(ctx, key, record, s.Config.RefreshTokenTTL); err != nil {
		return nil, err
	}

	family := refreshFamily{
		ClientID:        client.ClientID,
		Subject:         subject,
		CurrentKey:      key,
		AccessTokenID:   claims.ID,
		AccessExpiresAt: claims.Expiry(),
	}
	if err := s.putRecord(ctx, familyKey(familyID), family, s.Config.RefreshTokenTTL); err != nil {
		return nil, err
	}

	out.refresh = refresh
	out.familyID = familyID
	return out, nil
}

// revokeFamily invalidates the current refresh token of a family and the last
// access token minted for it
func (s *Server) revokeFamily(ctx context.Context, familyID string) error {
	var family refreshFamily
	found, err := s.getRecord(ctx, familyKey(familyID), &family)
	if err != nil {
		return err
	}
	if !found || family.Revoked {
		return nil
	}

	if family.CurrentKey != "" {
		if _, err := s.store.DeleteKV(ctx, family.CurrentKey); err != nil {
			return fmt.Errorf("failed to delete refresh token: %w", err)
		}
	}
	if family.AccessTokenID != "" {
		if err := s.revocations.Revoke(ctx, family.AccessTokenID, family.AccessExpiresAt); err != nil {
			return err
		}
	}

	family.Revoked = true
	family.CurrentKey = ""
	return s.putRecord(ctx, familyKey(familyID), family, s.Config.RefreshTokenTTL)
}

// tokenResponse wraps issued tokens as an RFC 6749 Section 5.1 response
func (s *Server) tokenResponse(issued *issuedTokens) *oauth2.Token {
	expiry := issued.claims.Expiry()
	tok := &oauth2.Token{
		AccessToken:  issued.access,
		TokenType:    "Bearer",
		RefreshToken: issued.refresh,
		Expiry:       expiry,
		ExpiresIn:    int64(expiry.Sub(s.Config.Now()).Seconds()),
	}
	return tok.WithExtra(map[string]any{
		"scope": util.JoinScopes(issued.claims.Scopes),
	})
}
