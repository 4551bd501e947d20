package server

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/storage"
)

// Client type constants
const (
	// ClientTypeConfidential represents a confidential OAuth client
	ClientTypeConfidential = "confidential"

	// ClientTypePublic represents a public OAuth client
	ClientTypePublic = "public"
)

// Token endpoint authentication method constants (RFC 7591)
const (
	// TokenEndpointAuthMethodNone represents no authentication (public clients)
	TokenEndpointAuthMethodNone = "none"

	// TokenEndpointAuthMethodBasic represents HTTP Basic authentication
	TokenEndpointAuthMethodBasic = "client_secret_basic"

	// TokenEndpointAuthMethodPost represents POST form parameters
	TokenEndpointAuthMethodPost = "client_secret_post"
)

// Grant types
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// SupportedGrantTypes lists the grant types a client can register for
var SupportedGrantTypes = []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken}

// dummySecretHash is compared against when a client does not exist, so that
// unknown and known clients cost the same bcrypt work
var dummySecretHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Client is a registered OAuth client
type Client struct {
	ClientID                string    `json:"client_id"`
	ClientSecretHash        string    `json:"client_secret_hash,omitempty"`
	ClientType              string    `json:"client_type"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	RedirectURIs            []string  `json:"redirect_uris"`
	GrantTypes              []string  `json:"grant_types"`
	Scopes                  []string  `json:"scopes,omitempty"`
	ClientName              string    `json:"client_name,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

// IsPublic reports whether the client cannot keep a secret
func (c *Client) IsPublic() bool {
	return c.ClientType == ClientTypePublic
}

// HasGrantType reports whether the client registered for grantType
func (c *Client) HasGrantType(grantType string) bool {
	return util.Contains(c.GrantTypes, grantType)
}

// HasRedirectURI reports whether uri exactly matches a registered redirect URI
func (c *Client) HasRedirectURI(uri string) bool {
	return util.Contains(c.RedirectURIs, uri)
}

// ClientRegistration describes a client to register
type ClientRegistration struct {
	// ClientName is the human-readable name of the client
	ClientName string

	// ClientType is "public" or "confidential". Derived from
	// TokenEndpointAuthMethod when empty.
	ClientType string

	// TokenEndpointAuthMethod is "none", "client_secret_basic" or "client_secret_post"
	TokenEndpointAuthMethod string

	// RedirectURIs must contain at least one absolute URI
	RedirectURIs []string

	// GrantTypes defaults to authorization_code and refresh_token
	GrantTypes []string

	// Scopes restricts the scopes the client may request. Empty allows all
	// scopes supported by the server.
	Scopes []string
}

// RegisterClient registers a new OAuth client. The plaintext secret of a
// confidential client is returned once and only its bcrypt hash is stored.
func (s *Server) RegisterClient(ctx context.Context, reg ClientRegistration) (*Client, string, error) {
	if err := s.validateRegistration(&reg); err != nil {
		s.Logger.Warn("Client registration rejected", "error", err)
		return nil, "", err
	}

	clientType, authMethod := resolveClientTypeAndAuthMethod(reg.ClientType, reg.TokenEndpointAuthMethod)
	clientSecret, clientSecretHash, err := generateClientSecret(clientType)
	if err != nil {
		return nil, "", err
	}

	client := &Client{
		ClientID:                generateRandomToken(),
		ClientSecretHash:        clientSecretHash,
		ClientType:              clientType,
		TokenEndpointAuthMethod: authMethod,
		RedirectURIs:            reg.RedirectURIs,
		GrantTypes:              reg.GrantTypes,
		Scopes:                  reg.Scopes,
		ClientName:              reg.ClientName,
		CreatedAt:               s.Config.Now().UTC(),
	}

	if err := s.putRecord(ctx, clientKey(client.ClientID), client, storage.NoExpiry); err != nil {
		return nil, "", fmt.Errorf("failed to save client: %w", err)
	}

	if m := s.metrics(); m != nil {
		m.RecordClientRegistration(ctx, client.ClientType)
	}
	s.Auditor.LogClientRegistered(ctx, client.ClientID, client.ClientType)

	s.Logger.Info("Registered new OAuth client",
		"client_id", client.ClientID,
		"client_name", client.ClientName,
		"client_type", client.ClientType,
		"token_endpoint_auth_method", client.TokenEndpointAuthMethod)
	return client, clientSecret, nil
}

// validateRegistration checks a registration and fills in default grant types
func (s *Server) validateRegistration(reg *ClientRegistration) error {
	if len(reg.RedirectURIs) == 0 {
		return errInvalidRequest("at least one redirect_uri is required")
	}
	for _, uri := range reg.RedirectURIs {
		if err := util.ValidateRedirectURI(uri); err != nil {
			return errInvalidRequest(err.Error())
		}
	}

	switch reg.TokenEndpointAuthMethod {
	case "", TokenEndpointAuthMethodNone, TokenEndpointAuthMethodBasic, TokenEndpointAuthMethodPost:
	default:
		return errInvalidRequest(fmt.Sprintf("unsupported token_endpoint_auth_method: %s", reg.TokenEndpointAuthMethod))
	}
	switch reg.ClientType {
	case "", ClientTypePublic, ClientTypeConfidential:
	default:
		return errInvalidRequest(fmt.Sprintf("unsupported client_type: %s", reg.ClientType))
	}
	if reg.ClientType == ClientTypePublic &&
		(reg.TokenEndpointAuthMethod == TokenEndpointAuthMethodBasic || reg.TokenEndpointAuthMethod == TokenEndpointAuthMethodPost) {
		return errInvalidRequest("public clients cannot use a client secret")
	}

	if len(reg.GrantTypes) == 0 {
		reg.GrantTypes = append([]string(nil), SupportedGrantTypes...)
	}
	reg.GrantTypes = util.Dedupe(reg.GrantTypes)
	for _, gt := range reg.GrantTypes {
		if !util.Contains(SupportedGrantTypes, gt) {
			return errInvalidRequest(fmt.Sprintf("unsupported grant_type: %s", gt))
		}
	}

	reg.Scopes = util.Dedupe(reg.Scopes)
	if err := s.validateScopes(reg.Scopes); err != nil {
		return err
	}
	return nil
}

// resolveClientTypeAndAuthMethod determines the client type and auth method.
// Per RFC 7591 Section 2: token_endpoint_auth_method determines client type.
func resolveClientTypeAndAuthMethod(clientType, tokenEndpointAuthMethod string) (string, string) {
	if tokenEndpointAuthMethod == TokenEndpointAuthMethodNone {
		clientType = ClientTypePublic
	} else if clientType == "" {
		clientType = ClientTypeConfidential
	}

	if tokenEndpointAuthMethod == "" {
		if clientType == ClientTypePublic {
			tokenEndpointAuthMethod = TokenEndpointAuthMethodNone
		} else {
			tokenEndpointAuthMethod = TokenEndpointAuthMethodBasic
		}
	}

	return clientType, tokenEndpointAuthMethod
}

// generateClientSecret generates a secret for confidential clients.
func generateClientSecret(clientType string) (string, string, error) {
	if clientType != ClientTypeConfidential {
		return "", "", nil
	}

	clientSecret := generateRandomToken()
	hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash client secret: %w", err)
	}
	return clientSecret, string(hash), nil
}

// GetClient retrieves a registered client. Unknown clients yield ErrUnknownClient.
func (s *Server) GetClient(ctx context.Context, clientID string) (*Client, error) {
	if clientID == "" {
		return nil, errUnknownClient()
	}

	var client Client
	found, err := s.getRecord(ctx, clientKey(clientID), &client)
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	if !found {
		return nil, errUnknownClient()
	}
	return &client, nil
}

// ValidateClientCredentials authenticates a client at the token endpoint.
// Public clients authenticate without a secret (PKCE binds their codes).
//
// SECURITY: a bcrypt comparison runs for unknown clients too, so response
// timing does not reveal which client IDs exist.
func (s *Server) ValidateClientCredentials(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil && !isOAuthError(err) {
		return nil, err
	}

	hashToCompare := dummySecretHash
	if client != nil && !client.IsPublic() && client.ClientSecretHash != "" {
		hashToCompare = []byte(client.ClientSecretHash)
	}
	bcryptErr := bcrypt.CompareHashAndPassword(hashToCompare, []byte(clientSecret))

	if client == nil {
		s.Auditor.LogAuthFailure(ctx, "", clientID, "unknown_client")
		return nil, errInvalidClient()
	}
	if client.IsPublic() {
		return client, nil
	}
	if bcryptErr != nil {
		s.Logger.Debug("Client authentication failed",
			"client_id", clientID,
			"reason", "secret_mismatch")
		s.Auditor.LogAuthFailure(ctx, "", clientID, "invalid_client_secret")
		return nil, errInvalidClient()
	}
	return client, nil
}
