package token

import (
	"errors"
	"fmt"
)

// Reason identifies why a token failed validation.
// Reasons are stable strings suitable for audit logs and metric labels.
type Reason string

// Validation reasons
const (
	ReasonMalformed           Reason = "malformed"
	ReasonSignatureInvalid    Reason = "signature_invalid"
	ReasonExpired             Reason = "expired"
	ReasonIssuerMismatch      Reason = "issuer_mismatch"
	ReasonAudienceMismatch    Reason = "audience_mismatch"
	ReasonAlgorithmNotAllowed Reason = "alg_not_allowed"
)

// Sentinel errors, one per validation reason. A *ValidationError matches the
// sentinel of its reason with errors.Is.
var (
	ErrMalformed           = errors.New("token is malformed")
	ErrSignatureInvalid    = errors.New("token signature is invalid")
	ErrExpired             = errors.New("token is expired")
	ErrIssuerMismatch      = errors.New("token issuer does not match")
	ErrAudienceMismatch    = errors.New("token audience does not match")
	ErrAlgorithmNotAllowed = errors.New("token signing algorithm is not allowed")
)

// Signing and key errors
var (
	// ErrSigning matches every *SigningError
	ErrSigning = errors.New("token signing failed")

	// ErrInvalidKey indicates unusable key material
	ErrInvalidKey = errors.New("invalid key material")

	// ErrNoSigningKey is returned when a verify-only manager is asked to sign
	ErrNoSigningKey = errors.New("manager has no signing key")

	// ErrEmptySubject is returned when a token is requested for an empty subject
	ErrEmptySubject = errors.New("subject cannot be empty")

	// ErrNegativeTTL is returned for negative token lifetimes
	ErrNegativeTTL = errors.New("token ttl cannot be negative")
)

var reasonSentinels = map[Reason]error{
	ReasonMalformed:           ErrMalformed,
	ReasonSignatureInvalid:    ErrSignatureInvalid,
	ReasonExpired:             ErrExpired,
	ReasonIssuerMismatch:      ErrIssuerMismatch,
	ReasonAudienceMismatch:    ErrAudienceMismatch,
	ReasonAlgorithmNotAllowed: ErrAlgorithmNotAllowed,
}

// ValidationError reports a token that failed one specific check.
// A manager never returns claims together with a ValidationError.
type ValidationError struct {
	Reason Reason
	// Err is the underlying cause, if any (decoding or library error)
	Err error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid token (%s)", e.Reason)
}

// Unwrap returns the underlying cause
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the reason
func (e *ValidationError) Is(target error) bool {
	sentinel, ok := reasonSentinels[e.Reason]
	return ok && sentinel == target
}

func newValidationError(reason Reason, cause error) *ValidationError {
	return &ValidationError{Reason: reason, Err: cause}
}

// ReasonOf returns the validation reason carried by err, or "" if err is not a *ValidationError
func ReasonOf(err error) Reason {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}

// SigningError reports invalid key material or a failure to produce a token
type SigningError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *SigningError) Error() string {
	return fmt.Sprintf("token signing failed: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause
func (e *SigningError) Unwrap() error {
	return e.Err
}

// Is matches ErrSigning
func (e *SigningError) Is(target error) bool {
	return target == ErrSigning
}

func newSigningError(op string, err error) *SigningError {
	return &SigningError{Op: op, Err: err}
}
