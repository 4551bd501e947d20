package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/giantswarm/auth-framework/storage"
)

// OAuth error codes (RFC 6749 Section 5.2, RFC 6750 Section 3.1)
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeUnauthorizedClient   = "unauthorized_client"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeServerError          = "server_error"
	ErrorCodeAccessDenied         = "access_denied"
)

// Sentinel errors. Every *OAuthError returned by the server wraps one of
// these, so callers can branch with errors.Is.
var (
	// ErrUnknownClient is returned when a request names a client that was never registered
	ErrUnknownClient = errors.New("unknown client")

	// ErrInvalidClient is returned when client authentication fails
	ErrInvalidClient = errors.New("client authentication failed")

	// ErrInvalidGrant is returned for a missing, expired, consumed or mismatched
	// authorization code or refresh token
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrPKCEMismatch is returned when the code_verifier does not match the
	// stored code_challenge
	ErrPKCEMismatch = errors.New("pkce verification failed")

	// ErrInvalidRequest is returned for malformed or incomplete requests
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidScope is returned when a requested scope is not allowed
	ErrInvalidScope = errors.New("invalid scope")

	// ErrUnauthorizedClient is returned when a client uses a grant type it is not registered for
	ErrUnauthorizedClient = errors.New("unauthorized client")

	// ErrInvalidToken is returned by ValidateAccessToken for revoked tokens
	ErrInvalidToken = errors.New("invalid token")

	// ErrStorageUnavailable is returned when the backing store cannot be reached
	ErrStorageUnavailable = storage.ErrStorageUnavailable
)

// OAuthError is an error that maps onto an RFC 6749 error response
type OAuthError struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_grant")
	Description string // Human-readable error description, safe to return to clients
	Status      int    // Suggested HTTP status code for transport bindings
	Err         error  // Sentinel matched by errors.Is
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap returns the sentinel error
func (e *OAuthError) Unwrap() error {
	return e.Err
}

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string, status int, sentinel error) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		Status:      status,
		Err:         sentinel,
	}
}

func errUnknownClient() *OAuthError {
	return NewOAuthError(ErrorCodeInvalidClient, "unknown client", http.StatusUnauthorized, ErrUnknownClient)
}

func errInvalidClient() *OAuthError {
	return NewOAuthError(ErrorCodeInvalidClient, "client authentication failed", http.StatusUnauthorized, ErrInvalidClient)
}

// errInvalidGrant is deliberately generic: callers must not learn why a code
// or refresh token was refused
func errInvalidGrant() *OAuthError {
	return NewOAuthError(ErrorCodeInvalidGrant, "invalid grant", http.StatusBadRequest, ErrInvalidGrant)
}

func errPKCEMismatch() *OAuthError {
	return NewOAuthError(ErrorCodeInvalidGrant, "code_verifier does not match code_challenge", http.StatusBadRequest, ErrPKCEMismatch)
}

func errInvalidRequest(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest, ErrInvalidRequest)
}

func errInvalidScope(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeInvalidScope, desc, http.StatusBadRequest, ErrInvalidScope)
}

func errUnauthorizedClient(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeUnauthorizedClient, desc, http.StatusBadRequest, ErrUnauthorizedClient)
}

func errInvalidToken(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeInvalidToken, desc, http.StatusUnauthorized, ErrInvalidToken)
}

// ErrorResponse is the RFC 6749 Section 5.2 error body
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}

// ToErrorResponse converts any error returned by the server into an error
// body and HTTP status. Errors that are not *OAuthError become server_error
// without leaking their message.
func ToErrorResponse(err error) (ErrorResponse, int) {
	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		return ErrorResponse{
			Error:            oauthErr.Code,
			ErrorDescription: oauthErr.Description,
		}, oauthErr.Status
	}
	if errors.Is(err, ErrStorageUnavailable) {
		return ErrorResponse{
			Error:            ErrorCodeServerError,
			ErrorDescription: "temporarily unavailable",
		}, http.StatusServiceUnavailable
	}
	return ErrorResponse{Error: ErrorCodeServerError}, http.StatusInternalServerError
}

// isOAuthError reports whether err carries an RFC 6749 error
func isOAuthError(err error) bool {
	var oauthErr *OAuthError
	return errors.As(err, &oauthErr)
}
