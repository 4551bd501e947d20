package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/giantswarm/auth-framework/instrumentation"
)

// Auditor handles security event logging with PII protection.
// Subjects are logged as truncated SHA-256 hashes; tokens and codes are never logged.
type Auditor struct {
	logger          *slog.Logger
	enabled         bool
	instrumentation *instrumentation.Instrumentation
	now             func() time.Time
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
		now:     time.Now,
	}
}

// SetInstrumentation counts audit events in the auth.audit.events.total metric
func (a *Auditor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	a.instrumentation = inst
}

// Event represents a security audit event
type Event struct {
	Type      string
	Subject   string
	ClientID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with the subject hashed
func (a *Auditor) LogEvent(ctx context.Context, event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = a.now()

	a.logger.InfoContext(ctx, "security_audit",
		"event_type", event.Type,
		"subject_hash", hashForLogging(event.Subject),
		"client_id", event.ClientID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)

	if a.instrumentation != nil {
		a.instrumentation.Metrics().RecordAuditEvent(ctx, event.Type)
	}
}

// LogTokenIssued logs when a token is issued
func (a *Auditor) LogTokenIssued(ctx context.Context, subject, clientID, method, scope string) {
	a.LogEvent(ctx, Event{
		Type:     EventTokenIssued,
		Subject:  subject,
		ClientID: clientID,
		Details: map[string]any{
			"method": method,
			"scope":  scope,
		},
	})
}

// LogTokenValidationFailed logs a rejected token with its validation reason
func (a *Auditor) LogTokenValidationFailed(ctx context.Context, reason string) {
	a.LogEvent(ctx, Event{
		Type: EventTokenValidationFailed,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogTokenRefreshed logs when a token is refreshed
func (a *Auditor) LogTokenRefreshed(ctx context.Context, subject, clientID string, rotated bool) {
	a.LogEvent(ctx, Event{
		Type:     EventTokenRefreshed,
		Subject:  subject,
		ClientID: clientID,
		Details: map[string]any{
			"rotated": rotated,
		},
	})
}

// LogTokenRevoked logs when a token is revoked
func (a *Auditor) LogTokenRevoked(ctx context.Context, subject, clientID, tokenType string) {
	a.LogEvent(ctx, Event{
		Type:     EventTokenRevoked,
		Subject:  subject,
		ClientID: clientID,
		Details: map[string]any{
			"token_type": tokenType,
		},
	})
}

// LogPermissionChange logs a grant or revocation of a permission tuple
func (a *Auditor) LogPermissionChange(ctx context.Context, eventType, subject, scope string) {
	a.LogEvent(ctx, Event{
		Type:    eventType,
		Subject: subject,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogAuthFailure logs an authentication failure
func (a *Auditor) LogAuthFailure(ctx context.Context, subject, clientID, reason string) {
	a.LogEvent(ctx, Event{
		Type:     EventAuthFailure,
		Subject:  subject,
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ctx context.Context, limiter, identifier string) {
	a.LogEvent(ctx, Event{
		Type:     EventRateLimitExceeded,
		ClientID: identifier,
		Details: map[string]any{
			"limiter": limiter,
		},
	})
}

// LogClientRegistered logs when a new client is registered
func (a *Auditor) LogClientRegistered(ctx context.Context, clientID, clientType string) {
	a.LogEvent(ctx, Event{
		Type:     EventClientRegistered,
		ClientID: clientID,
		Details: map[string]any{
			"client_type": clientType,
		},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
