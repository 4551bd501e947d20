package server

import (
	"context"
	"net/http"
	"time"

	"github.com/giantswarm/auth-framework/instrumentation"
	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/security"
)

// AuthorizationRequest is an approved authorization request: the resource
// owner identified by Subject has consented to the client's request. How the
// owner is authenticated is up to the caller.
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	Scopes              []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Subject             string
}

// AuthorizationGrant tracks an issued authorization code until it is redeemed
// or expires
type AuthorizationGrant struct {
	Code                string    `json:"-"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Subject             string    `json:"sub"`
	Scopes              []string  `json:"scopes"`
	State               string    `json:"-"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// consumedGrant is left behind when a code is redeemed, so that a replay of
// the code can revoke what it produced
type consumedGrant struct {
	ClientID        string    `json:"client_id"`
	Subject         string    `json:"sub"`
	AccessTokenID   string    `json:"jti"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	RefreshFamilyID string    `json:"refresh_family_id,omitempty"`
}

// Authorize validates an approved authorization request and issues a
// single-use authorization code. Requests naming an unknown client are
// rejected before any state is created.
func (s *Server) Authorize(ctx context.Context, req AuthorizationRequest) (grant *AuthorizationGrant, err error) {
	ctx, span := s.startSpan(ctx, "server.authorize")
	defer func() { instrumentation.EndSpan(span, err) }()
	instrumentation.AddOAuthFlowAttributes(span, req.ClientID, "", util.JoinScopes(req.Scopes))

	client, err := s.GetClient(ctx, req.ClientID)
	if err != nil {
		if isOAuthError(err) {
			s.Auditor.LogAuthFailure(ctx, req.Subject, req.ClientID, "unknown_client")
		}
		return nil, err
	}

	if !client.HasRedirectURI(req.RedirectURI) {
		s.Auditor.LogEvent(ctx, security.Event{
			Type:     security.EventInvalidRedirect,
			Subject:  req.Subject,
			ClientID: client.ClientID,
		})
		return nil, errInvalidRequest("redirect_uri not registered for client")
	}
	if !client.HasGrantType(GrantTypeAuthorizationCode) {
		return nil, errUnauthorizedClient("client is not registered for the authorization_code grant")
	}
	if req.Subject == "" {
		return nil, NewOAuthError(ErrorCodeAccessDenied, "resource owner is required", http.StatusForbidden, ErrInvalidRequest)
	}

	scopes := util.Dedupe(req.Scopes)
	if err := s.validateClientScopes(scopes, client); err != nil {
		s.Auditor.LogEvent(ctx, security.Event{
			Type:     security.EventScopeEscalationAttempt,
			Subject:  req.Subject,
			ClientID: client.ClientID,
			Details: map[string]any{
				"requested_scope": util.JoinScopes(scopes),
			},
		})
		return nil, err
	}

	challengeMethod, err := s.resolveChallenge(client, req.CodeChallenge, req.CodeChallengeMethod)
	if err != nil {
		return nil, err
	}

	now := s.Config.Now()
	grant = &AuthorizationGrant{
		Code:                generateRandomToken(),
		ClientID:            client.ClientID,
		RedirectURI:         req.RedirectURI,
		Subject:             req.Subject,
		Scopes:              scopes,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: challengeMethod,
		CreatedAt:           now.UTC(),
		ExpiresAt:           now.Add(s.Config.AuthorizationCodeTTL).UTC(),
	}

	key := credentialKey(namespaceAuthCode, grant.Code)
	if err := s.putRecord(ctx, key, grant, s.Config.AuthorizationCodeTTL); err != nil {
		return nil, err
	}

	if m := s.metrics(); m != nil {
		m.RecordAuthorizationStarted(ctx, client.ClientID)
	}
	s.Auditor.LogEvent(ctx, security.Event{
		Type:     security.EventAuthorizationCodeIssued,
		Subject:  req.Subject,
		ClientID: client.ClientID,
		Details: map[string]any{
			"scope":       util.JoinScopes(scopes),
			"pkce_method": challengeMethod,
		},
	})

	s.Logger.Debug("Authorization code issued",
		"client_id", client.ClientID,
		"code_prefix", util.SafeTruncate(grant.Code, 8),
		"pkce_method", challengeMethod)
	return grant, nil
}

// resolveChallenge enforces the PKCE policy for client and returns the
// effective challenge method ("" when no challenge is used)
func (s *Server) resolveChallenge(client *Client, challenge, method string) (string, error) {
	if challenge == "" {
		if method != "" {
			return "", errInvalidRequest("code_challenge_method without code_challenge")
		}
		// SECURITY: public clients have no secret, PKCE is their only binding
		if client.IsPublic() {
			return "", errInvalidRequest("code_challenge is required for public clients")
		}
		if s.Config.RequirePKCE {
			return "", errInvalidRequest("code_challenge is required")
		}
		return "", nil
	}

	effective, err := s.validateCodeChallenge(challenge, method)
	if err != nil {
		return "", errInvalidRequest(err.Error())
	}
	return effective, nil
}
