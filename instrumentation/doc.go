// Package instrumentation provides OpenTelemetry instrumentation for the auth framework.
//
// Every layer (token manager, orchestrator, OAuth2 server, storage backends and
// security helpers) accepts an optional *Instrumentation through a SetInstrumentation
// setter. When none is set, the layer records nothing.
//
// # Quick Start
//
//	inst, err := instrumentation.New(ctx, instrumentation.Config{
//		Enabled:         true,
//		ServiceName:     "billing-api",
//		ServiceVersion:  "1.4.0",
//		MetricsExporter: instrumentation.MetricsExporterPrometheus,
//		TracesExporter:  instrumentation.TracesExporterOTLP,
//		OTLPEndpoint:    "otel-collector:4318",
//		OTLPInsecure:    true,
//	})
//	if err != nil {
//		return err
//	}
//	defer inst.Shutdown(context.Background())
//
//	fw.SetInstrumentation(inst)
//
// With the Prometheus exporter, PrometheusGatherer returns the registry that an
// HTTP layer can expose through promhttp.HandlerFor.
//
// # Available Metrics
//
// Tokens:
//   - auth.token.issued{auth.method, auth.token.alg}
//   - auth.token.validations{result, auth.token.validation_reason}
//   - auth.token.revoked{auth.token.type}
//
// Authorization:
//   - auth.permission.checks{allowed, auth.permission.source}
//   - auth.permission.changes{operation}
//
// OAuth2 flows:
//   - oauth.authorization.started{oauth.client_id}
//   - oauth.code.exchanged{oauth.client_id, oauth.pkce.method}
//   - oauth.token.refreshed{oauth.client_id, oauth.token.rotated}
//   - oauth.client.registered{oauth.client_type}
//
// Security:
//   - oauth.rate_limit.exceeded, oauth.pkce.validation_failed
//   - oauth.code.reuse_detected, oauth.token.reuse_detected
//   - auth.audit.events.total, auth.encryption.operations.total
//
// Storage:
//   - storage.operation.total{storage.backend, storage.operation, storage.result}
//   - storage.operation.duration{storage.backend, storage.operation}
//   - storage.entries{storage.backend}
//
// # Security Considerations
//
// Signed tokens, refresh tokens, authorization codes, client secrets and PKCE
// verifiers are never recorded. Only metadata such as algorithms, validation
// reasons and client identifiers end up in traces and metrics.
package instrumentation
