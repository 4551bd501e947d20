// Package storage defines the key/value contract used by every stateful part of
// the auth framework: permission grants, revoked token identifiers, OAuth2 clients,
// authorization grants and refresh tokens.
//
// The contract is intentionally small:
//   - StoreKV writes bytes with an optional time-to-live
//   - GetKV reads bytes, reporting absent and expired keys as not found
//   - DeleteKV removes a key
//   - TakeKV atomically reads and removes a key (single-use redemption)
//
// Not-found is never an error. Backend failures are reported as errors wrapping
// ErrStorageUnavailable so callers can tell them apart from routine absence.
//
// Implementations are provided in subpackages:
//   - storage/memory: In-memory storage for development, tests and single-instance deployments
//   - storage/redis: Redis-compatible distributed storage for production
//   - storage/mock: Failure-injecting storage for unit testing
package storage
