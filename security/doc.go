// Package security provides the audit, encryption and rate limiting pieces
// shared by the framework and the OAuth2 server.
//
// # Audit Logging
//
// Auditor writes "security_audit" records through log/slog. Subjects are
// logged as truncated SHA-256 hashes; tokens, codes and secrets never appear.
// Event type names are the Event* constants.
//
// # Encryption at Rest
//
// Encryptor seals stored records with AES-256-GCM. The storage key is passed
// as associated data, so a ciphertext copied under another key fails to open.
// An Encryptor built from an empty key is a pass-through.
//
//	key, _ := security.GenerateKey()
//	enc, _ := security.NewEncryptor(key)
//	sealed, _ := enc.Seal(ctx, record, []byte(storageKey))
//
// # Rate Limiting
//
// RateLimiter is a per-identifier token bucket (golang.org/x/time/rate) with
// LRU eviction once MaxEntries identifiers are tracked. Idle identifiers are
// swept lazily from Allow; no goroutines are started.
//
//	limiter := security.NewRateLimiter(1, 5, logger)
//	if !limiter.Allow(clientID) {
//	    // over the limit
//	}
package security
