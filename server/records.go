package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/giantswarm/auth-framework/storage"
)

// Storage key namespaces
const (
	namespaceClient        = "client"
	namespaceAuthCode      = "authcode"
	namespaceAuthCodeUsed  = "authcode:used"
	namespaceRefresh       = "refresh"
	namespaceRefreshUsed   = "refresh:used"
	namespaceRefreshFamily = "refresh:family"
)

func clientKey(clientID string) string {
	return storage.Key(namespaceClient, clientID)
}

// credentialKey derives the storage key of a bearer credential.
// SECURITY: codes and refresh tokens are stored under their SHA-256 digest,
// so the contents of the store cannot be redeemed directly.
func credentialKey(namespace, credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return namespace + ":" + hex.EncodeToString(sum[:])
}

// putRecord encodes v as JSON, seals it with the storage key as associated
// data and stores it
func (s *Server) putRecord(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	sealed, err := s.Encryptor.Seal(ctx, data, []byte(key))
	if err != nil {
		return fmt.Errorf("failed to encrypt record: %w", err)
	}
	if err := s.store.StoreKV(ctx, key, sealed, ttl); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

// getRecord loads and decodes the record under key into v
func (s *Server) getRecord(ctx context.Context, key string, v any) (bool, error) {
	data, found, err := s.store.GetKV(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read record: %w", err)
	}
	if !found {
		return false, nil
	}
	return true, s.decodeRecord(ctx, key, data, v)
}

// takeRecord atomically removes the record under key and decodes it into v.
// Exactly one of several concurrent callers observes found == true.
func (s *Server) takeRecord(ctx context.Context, key string, v any) (bool, error) {
	data, found, err := s.store.TakeKV(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to take record: %w", err)
	}
	if !found {
		return false, nil
	}
	return true, s.decodeRecord(ctx, key, data, v)
}

func (s *Server) decodeRecord(ctx context.Context, key string, data []byte, v any) error {
	plaintext, err := s.Encryptor.Open(ctx, data, []byte(key))
	if err != nil {
		return fmt.Errorf("failed to decrypt record: %w", err)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// remaining returns the time left until expiresAt, at least one millisecond
// so that a record about to expire is still written with a TTL
func remaining(now, expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(now)
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}
