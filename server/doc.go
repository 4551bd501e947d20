// Package server implements the core OAuth 2.1 authorization server logic.
//
// It covers client registration, the authorization code grant with PKCE,
// refresh token rotation, token revocation (RFC 7009) and introspection
// (RFC 7662). The package has no network transport; an HTTP binding maps
// requests onto these methods and errors onto ToErrorResponse.
//
// All state lives in a storage.Store:
//   - Clients are stored under their ID
//   - Authorization codes and refresh tokens are stored under their SHA-256 digest
//     and redeemed with storage.Store.TakeKV, so each is usable exactly once
//   - Access tokens are JWTs signed by a token.Manager; revoked ones are kept
//     in a revocation.List until they expire
//
// Key Features:
//   - OAuth 2.1 compliance with mandatory PKCE for public clients
//   - Authorization code reuse detection revoking the tokens minted from the code
//   - Refresh token rotation with family-wide reuse detection
//   - Security auditing and encryption at rest (security package)
//   - OpenTelemetry metrics and traces (instrumentation package)
//
// Example usage:
//
//	store := memory.New()
//	srv, err := server.New(ctx, store, &server.Config{
//	    Issuer:   "https://auth.example.com",
//	    Audience: "https://api.example.com",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, secret, err := srv.RegisterClient(ctx, server.ClientRegistration{
//	    ClientName:   "CLI",
//	    RedirectURIs: []string{"http://127.0.0.1:8765/callback"},
//	})
//
//	grant, err := srv.Authorize(ctx, server.AuthorizationRequest{
//	    ClientID:            client.ClientID,
//	    RedirectURI:         "http://127.0.0.1:8765/callback",
//	    Scopes:              []string{"read:profile"},
//	    CodeChallenge:       challenge,
//	    CodeChallengeMethod: server.PKCEMethodS256,
//	    Subject:             "alice",
//	})
//
//	tok, err := srv.ExchangeCode(ctx, server.TokenRequest{
//	    Code:         grant.Code,
//	    RedirectURI:  grant.RedirectURI,
//	    ClientID:     client.ClientID,
//	    ClientSecret: secret,
//	    CodeVerifier: verifier,
//	})
package server
