package server

import (
	"strings"
)

// AuthorizationServerMetadata represents OAuth 2.0 Authorization Server Metadata (RFC 8414)
type AuthorizationServerMetadata struct {
	// Issuer is the authorization server's issuer identifier URL
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint
	TokenEndpoint string `json:"token_endpoint"`

	// JWKSURI is the URL of the JSON Web Key Set used to verify access tokens
	JWKSURI string `json:"jwks_uri,omitempty"`

	// ScopesSupported lists the OAuth scopes supported
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// ResponseTypesSupported lists the OAuth response types supported
	ResponseTypesSupported []string `json:"response_types_supported"`

	// GrantTypesSupported lists the OAuth grant types supported
	GrantTypesSupported []string `json:"grant_types_supported,omitempty"`

	// TokenEndpointAuthMethodsSupported lists the client authentication methods supported at the token endpoint
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`

	// CodeChallengeMethodsSupported lists the PKCE code challenge methods supported
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`

	// RevocationEndpoint is the URL of the OAuth 2.0 token revocation endpoint (RFC 7009)
	RevocationEndpoint string `json:"revocation_endpoint,omitempty"`

	// IntrospectionEndpoint is the URL of the OAuth 2.0 token introspection endpoint (RFC 7662)
	IntrospectionEndpoint string `json:"introspection_endpoint,omitempty"`
}

// Endpoints are the paths a transport binding serves, relative to the issuer
type Endpoints struct {
	Authorization string
	Token         string
	JWKS          string
	Revocation    string
	Introspection string
}

// DefaultEndpoints returns conventional endpoint paths
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Authorization: "/oauth/authorize",
		Token:         "/oauth/token",
		JWKS:          "/.well-known/jwks.json",
		Revocation:    "/oauth/revoke",
		Introspection: "/oauth/introspect",
	}
}

// Metadata describes this server for discovery. Empty endpoint paths are omitted,
// except authorization and token which RFC 8414 requires.
func (s *Server) Metadata(endpoints Endpoints) *AuthorizationServerMetadata {
	issuer := strings.TrimSuffix(s.Config.Issuer, "/")
	endpoint := func(path string) string {
		if path == "" {
			return ""
		}
		return issuer + path
	}

	challengeMethods := []string{PKCEMethodS256}
	if s.Config.AllowPKCEPlain {
		challengeMethods = append(challengeMethods, PKCEMethodPlain)
	}

	md := &AuthorizationServerMetadata{
		Issuer:                            s.Config.Issuer,
		AuthorizationEndpoint:             issuer + endpoints.Authorization,
		TokenEndpoint:                     issuer + endpoints.Token,
		ScopesSupported:                   s.Config.SupportedScopes,
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               SupportedGrantTypes,
		TokenEndpointAuthMethodsSupported: []string{TokenEndpointAuthMethodBasic, TokenEndpointAuthMethodPost, TokenEndpointAuthMethodNone},
		CodeChallengeMethodsSupported:     challengeMethods,
		RevocationEndpoint:                endpoint(endpoints.Revocation),
		IntrospectionEndpoint:             endpoint(endpoints.Introspection),
	}
	// HMAC keys are never published
	if len(s.tokens.JWKS().Keys) > 0 {
		md.JWKSURI = endpoint(endpoints.JWKS)
	}
	return md
}
