package security

// Event type constants for security audit logging.
const (
	// Token lifecycle events

	// EventTokenIssued is logged when an access token is minted
	EventTokenIssued = "token_issued"

	// EventTokenValidationFailed is logged when a presented token is rejected
	EventTokenValidationFailed = "token_validation_failed"

	// EventTokenRefreshed is logged when a refresh token is redeemed
	EventTokenRefreshed = "token_refreshed"

	// EventTokenRevoked is logged when a token is added to the revocation list or deleted
	EventTokenRevoked = "token_revoked"

	// EventRevokedTokenPresented is logged when a revoked token is used
	EventRevokedTokenPresented = "revoked_token_presented" //nolint:gosec // G101: event type name, not a credential

	// Permission events

	// EventPermissionGranted is logged when a permission tuple is granted
	EventPermissionGranted = "permission_granted"

	// EventPermissionRevoked is logged when a permission tuple is revoked
	EventPermissionRevoked = "permission_revoked"

	// EventPermissionDenied is logged when a permission check fails
	EventPermissionDenied = "permission_denied"

	// Authorization flow events

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventAuthorizationCodeReuseDetected is logged when a consumed code is presented again
	EventAuthorizationCodeReuseDetected = "authorization_code_reuse_detected"

	// EventRefreshTokenReuseDetected is logged when a rotated refresh token is presented again
	EventRefreshTokenReuseDetected = "refresh_token_reuse_detected" //nolint:gosec // G101: event type name, not a credential

	// EventPKCEValidationFailed is logged when a code_verifier does not match its challenge
	EventPKCEValidationFailed = "pkce_validation_failed"

	// EventScopeEscalationAttempt is logged when a client requests scopes it was not allowed
	EventScopeEscalationAttempt = "scope_escalation_attempt"

	// EventInvalidRedirect is logged when an unregistered redirect URI is used
	EventInvalidRedirect = "invalid_redirect"

	// Client events

	// EventClientRegistered is logged when a new OAuth client is registered
	EventClientRegistered = "client_registered"

	// EventAuthFailure is logged when client authentication fails
	EventAuthFailure = "auth_failure"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"

	// Framework events

	// EventInitializationFailed is logged when the framework fails to initialize
	EventInitializationFailed = "initialization_failed"
)
