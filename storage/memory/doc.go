// Package memory provides an in-memory implementation of storage.Store.
//
// Features:
//   - Thread-safe operations using sync.RWMutex, linearizable per key
//   - Lazy TTL enforcement: expired entries read as absent and are dropped on access
//   - No background goroutines; Purge reclaims memory on demand
//   - Atomic TakeKV for single-use redemption of codes and refresh tokens
//   - Optional OpenTelemetry spans and metrics via SetInstrumentation
//
// For multi-instance deployments use the storage/redis package instead.
//
// Example usage:
//
//	store := memory.New()
//	fw, err := authframework.New(cfg, store, logger)
package memory
