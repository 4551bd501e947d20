package authframework

import (
	"errors"
	"fmt"

	"github.com/giantswarm/auth-framework/revocation"
)

var (
	// ErrNotInitialized is returned by token operations before Initialize has succeeded
	ErrNotInitialized = errors.New("auth framework not initialized")

	// ErrAlreadyInitialized is returned when the method set is changed after Initialize
	ErrAlreadyInitialized = errors.New("auth framework already initialized")

	// ErrUnknownMethod is returned when a token is requested from an unregistered method
	ErrUnknownMethod = errors.New("unknown auth method")

	// ErrInvalidMethod is returned for an empty method name, a nil method or a kind
	// outside the supported set
	ErrInvalidMethod = errors.New("invalid auth method")

	// ErrDuplicateMethod is returned when a method name is registered twice
	ErrDuplicateMethod = errors.New("auth method already registered")

	// ErrUnsupportedToken is returned when a token's structure matches no supported method
	ErrUnsupportedToken = errors.New("unsupported token format")

	// ErrTokenRevoked is returned when a token's jti is on the revocation list
	ErrTokenRevoked = revocation.ErrTokenRevoked

	// ErrInvalidConfig is wrapped by InitializationError for unusable key material or settings
	ErrInvalidConfig = errors.New("invalid auth framework configuration")
)

// InitializationError reports why Initialize failed. The framework stays
// unconfigured after it is returned, so no token can be issued.
type InitializationError struct {
	// Method is the name of the registered method that failed, empty when the
	// failure happened while building the token manager
	Method string
	Err    error
}

// Error implements the error interface
func (e *InitializationError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("initialization failed: %v", e.Err)
	}
	return fmt.Sprintf("initialization of method %q failed: %v", e.Method, e.Err)
}

// Unwrap returns the underlying cause
func (e *InitializationError) Unwrap() error {
	return e.Err
}
