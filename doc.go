// Package authframework is an embeddable authentication and authorization
// engine.
//
// A Framework issues and validates JWT access tokens, tracks permission
// grants and answers permission checks for a token:
//
//	fw, err := authframework.New(&authframework.Config{
//	    Issuer:     "https://auth.example.com",
//	    Audience:   "https://api.example.com",
//	    HMACSecret: secret,
//	}, nil, logger)
//	if err != nil {
//	    return err
//	}
//	_ = fw.RegisterMethod("jwt", authframework.NewJWTMethod())
//	if err := fw.Initialize(ctx); err != nil {
//	    return err // *InitializationError, nothing can be issued
//	}
//
//	tok, err := fw.CreateAuthToken(ctx, "alice", []string{"read:profile"}, "jwt")
//	ok, err := fw.CheckPermission(ctx, tok.AccessToken, "read", "profile")
//
// A permission is effective when the token carries the "action:resource"
// scope or the permission store holds the grant for the token's subject.
// Scopes embedded in a token stay valid for the token's lifetime; use
// RevokeToken to withdraw a token before it expires.
//
// The OAuth 2.0 authorization server lives in the server package and shares
// the same storage, token manager and revocation list.
package authframework
