package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span and metric attribute keys.
//
// SECURITY WARNING: Never record actual credential values (signed tokens, refresh
// tokens, authorization codes, client secrets, PKCE verifiers) in traces or metrics.
// Only record metadata such as token types, algorithms, and validation reasons.
const (
	// Token attributes
	AttrAuthMethod       = "auth.method"
	AttrAlgorithm        = "auth.token.alg"
	AttrValidationReason = "auth.token.validation_reason"
	AttrTokenType        = "auth.token.type" //nolint:gosec // token type name, not a credential
	AttrSubject          = "auth.subject"

	// Permission attributes
	AttrAction           = "auth.permission.action"
	AttrResource         = "auth.permission.resource"
	AttrPermissionSource = "auth.permission.source"

	// OAuth flow attributes
	AttrClientID     = "oauth.client_id"
	AttrClientType   = "oauth.client_type"
	AttrScope        = "oauth.scope"
	AttrPKCEMethod   = "oauth.pkce.method"
	AttrGrantType    = "oauth.grant_type"
	AttrCodeReuse    = "oauth.code.reuse"
	AttrTokenRotated = "oauth.token.rotated" //nolint:gosec // boolean flag, not a credential

	// Storage attributes
	AttrStorageOperation = "storage.operation"
	AttrStorageResult    = "storage.result"
	AttrStorageBackend   = "storage.backend"

	// Security attributes
	AttrRateLimiterType     = "security.rate_limiter.type"
	AttrAuditEventType      = "security.audit.event_type"
	AttrEncryptionOperation = "security.encryption.operation"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// EndSpan sets the span status from err and ends it (nil-safe)
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		RecordError(span, err)
	} else {
		SetSpanSuccess(span)
	}
	span.End()
}

// AddOAuthFlowAttributes adds common OAuth flow attributes to a span (nil-safe)
func AddOAuthFlowAttributes(span trace.Span, clientID, subject, scope string) {
	if clientID != "" {
		SetSpanAttributes(span, attribute.String(AttrClientID, clientID))
	}
	if subject != "" {
		SetSpanAttributes(span, attribute.String(AttrSubject, subject))
	}
	if scope != "" {
		SetSpanAttributes(span, attribute.String(AttrScope, scope))
	}
}

// AddPermissionAttributes adds the (action, resource) pair under evaluation to a span
func AddPermissionAttributes(span trace.Span, action, resource string) {
	SetSpanAttributes(span,
		attribute.String(AttrAction, action),
		attribute.String(AttrResource, resource),
	)
}

// AddStorageAttributes adds storage operation attributes to a span (nil-safe)
func AddStorageAttributes(span trace.Span, operation, backend string) {
	SetSpanAttributes(span,
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageBackend, backend),
	)
}
