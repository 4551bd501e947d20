package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the auth framework
type Metrics struct {
	// Token Metrics
	TokensIssued     metric.Int64Counter
	TokenValidations metric.Int64Counter
	TokensRevoked    metric.Int64Counter

	// Authorization Metrics
	PermissionChecks  metric.Int64Counter
	PermissionChanges metric.Int64Counter

	// OAuth Flow Metrics
	AuthorizationStarted metric.Int64Counter
	CodeExchanged        metric.Int64Counter
	TokenRefreshed       metric.Int64Counter
	ClientRegistered     metric.Int64Counter

	// Security Metrics
	RateLimitExceeded    metric.Int64Counter
	PKCEValidationFailed metric.Int64Counter
	CodeReuseDetected    metric.Int64Counter
	TokenReuseDetected   metric.Int64Counter

	// Storage Metrics
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
	StorageEntries           metric.Int64ObservableGauge

	// Audit Metrics
	AuditEventsTotal metric.Int64Counter

	// Encryption Metrics
	EncryptionOperationsTotal metric.Int64Counter
	EncryptionDuration        metric.Float64Histogram
}

// counterSpec describes a counter to be created on a given meter
type counterSpec struct {
	target *metric.Int64Counter
	meter  metric.Meter
	name   string
	desc   string
	unit   string
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	tokenMeter := inst.Meter("token")
	frameworkMeter := inst.Meter("framework")
	serverMeter := inst.Meter("server")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")

	counters := []counterSpec{
		{&m.TokensIssued, tokenMeter, "auth.token.issued", "Number of tokens issued", "{token}"},
		{&m.TokenValidations, tokenMeter, "auth.token.validations", "Number of token validations by result", "{validation}"},
		{&m.TokensRevoked, tokenMeter, "auth.token.revoked", "Number of tokens revoked", "{revocation}"},
		{&m.PermissionChecks, frameworkMeter, "auth.permission.checks", "Number of permission checks by decision", "{check}"},
		{&m.PermissionChanges, frameworkMeter, "auth.permission.changes", "Number of permission grants and revocations", "{change}"},
		{&m.AuthorizationStarted, serverMeter, "oauth.authorization.started", "Number of authorization grants issued", "{grant}"},
		{&m.CodeExchanged, serverMeter, "oauth.code.exchanged", "Number of authorization codes exchanged for tokens", "{exchange}"},
		{&m.TokenRefreshed, serverMeter, "oauth.token.refreshed", "Number of tokens refreshed", "{refresh}"},
		{&m.ClientRegistered, serverMeter, "oauth.client.registered", "Number of clients registered", "{client}"},
		{&m.RateLimitExceeded, securityMeter, "oauth.rate_limit.exceeded", "Number of rate limit violations", "{violation}"},
		{&m.PKCEValidationFailed, securityMeter, "oauth.pkce.validation_failed", "Number of PKCE validation failures", "{failure}"},
		{&m.CodeReuseDetected, securityMeter, "oauth.code.reuse_detected", "Number of authorization code reuse attempts detected", "{attempt}"},
		{&m.TokenReuseDetected, securityMeter, "oauth.token.reuse_detected", "Number of refresh token reuse attempts detected", "{attempt}"},
		{&m.StorageOperationTotal, storageMeter, "storage.operation.total", "Total number of storage operations", "{operation}"},
		{&m.AuditEventsTotal, securityMeter, "auth.audit.events.total", "Total number of audit events", "{event}"},
		{&m.EncryptionOperationsTotal, securityMeter, "auth.encryption.operations.total", "Total number of encryption/decryption operations", "{operation}"},
	}

	for _, c := range counters {
		counter, err := c.meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.target = counter
	}

	var err error
	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	m.StorageEntries, err = storageMeter.Int64ObservableGauge(
		"storage.entries",
		metric.WithDescription("Number of live entries held by a store"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.entries gauge: %w", err)
	}

	m.EncryptionDuration, err = securityMeter.Float64Histogram(
		"auth.encryption.duration",
		metric.WithDescription("Encryption/decryption operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryption.duration histogram: %w", err)
	}

	return m, nil
}

func attrBackend(backend string) attribute.KeyValue {
	return attribute.String(AttrStorageBackend, backend)
}

// RecordTokenIssued records a token issuance
func (m *Metrics) RecordTokenIssued(ctx context.Context, method, algorithm string) {
	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAuthMethod, method),
		attribute.String(AttrAlgorithm, algorithm),
	))
}

// RecordTokenValidation records a validation outcome. reason is empty on success.
func (m *Metrics) RecordTokenValidation(ctx context.Context, reason string) {
	result := "valid"
	if reason != "" {
		result = "invalid"
	}
	m.TokenValidations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
		attribute.String(AttrValidationReason, reason),
	))
}

// RecordTokenRevocation records a token revocation
func (m *Metrics) RecordTokenRevocation(ctx context.Context, tokenType string) {
	m.TokensRevoked.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTokenType, tokenType),
	))
}

// RecordPermissionCheck records an authorization decision and what proved it
// ("scope", "grant" or "none").
func (m *Metrics) RecordPermissionCheck(ctx context.Context, allowed bool, source string) {
	m.PermissionChecks.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("allowed", allowed),
		attribute.String(AttrPermissionSource, source),
	))
}

// RecordPermissionChange records a grant or revoke against the permission store
func (m *Metrics) RecordPermissionChange(ctx context.Context, operation string) {
	m.PermissionChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordAuthorizationStarted records an approved authorization request
func (m *Metrics) RecordAuthorizationStarted(ctx context.Context, clientID string) {
	m.AuthorizationStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientID, clientID),
	))
}

// RecordCodeExchange records an authorization code exchange
func (m *Metrics) RecordCodeExchange(ctx context.Context, clientID, pkceMethod string) {
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientID, clientID),
		attribute.String(AttrPKCEMethod, pkceMethod),
	))
}

// RecordTokenRefresh records a token refresh operation
func (m *Metrics) RecordTokenRefresh(ctx context.Context, clientID string, rotated bool) {
	m.TokenRefreshed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientID, clientID),
		attribute.Bool(AttrTokenRotated, rotated),
	))
}

// RecordClientRegistration records a client registration
func (m *Metrics) RecordClientRegistration(ctx context.Context, clientType string) {
	m.ClientRegistered.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientType, clientType),
	))
}

// RecordRateLimitExceeded records a rate limit violation
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrRateLimiterType, limiterType),
	))
}

// RecordPKCEValidationFailed records a PKCE validation failure
func (m *Metrics) RecordPKCEValidationFailed(ctx context.Context, method string) {
	m.PKCEValidationFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPKCEMethod, method),
	))
}

// RecordCodeReuseDetected records an authorization code reuse attempt
func (m *Metrics) RecordCodeReuseDetected(ctx context.Context) {
	m.CodeReuseDetected.Add(ctx, 1)
}

// RecordTokenReuseDetected records a refresh token reuse attempt
func (m *Metrics) RecordTokenReuseDetected(ctx context.Context) {
	m.TokenReuseDetected.Add(ctx, 1)
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, backend, operation, result string, durationMs float64) {
	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attrBackend(backend),
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageResult, result),
	))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attrBackend(backend),
		attribute.String(AttrStorageOperation, operation),
	))
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAuditEventType, eventType),
	))
}

// RecordEncryptionOperation records an encryption/decryption operation
func (m *Metrics) RecordEncryptionOperation(ctx context.Context, operation string, durationMs float64) {
	attrs := metric.WithAttributes(attribute.String(AttrEncryptionOperation, operation))
	m.EncryptionOperationsTotal.Add(ctx, 1, attrs)
	m.EncryptionDuration.Record(ctx, durationMs, attrs)
}
