package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrStorageUnavailable is returned when the backend cannot be reached.
	// Absent keys are never reported through this error.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidKey is returned for empty keys
	ErrInvalidKey = errors.New("storage key cannot be empty")

	// ErrNegativeTTL is returned when a negative TTL is passed to StoreKV
	ErrNegativeTTL = errors.New("storage ttl cannot be negative")
)

// NoExpiry stores an entry without a time-to-live
const NoExpiry time.Duration = 0

// Store is the key/value contract every component of the framework builds on.
//
// Implementations must be safe for concurrent use and linearizable per key.
// Expired entries behave exactly like absent ones; expiry is checked when an
// entry is read, not by a background sweeper.
// All methods accept context.Context for tracing and cancellation.
type Store interface {
	// StoreKV writes value under key. A ttl of NoExpiry keeps the entry until
	// it is deleted. Overwriting a key replaces both value and ttl.
	StoreKV(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// GetKV returns the value stored under key. A missing or expired key
	// yields (nil, false, nil).
	GetKV(ctx context.Context, key string) ([]byte, bool, error)

	// DeleteKV removes key and reports whether a live entry existed.
	DeleteKV(ctx context.Context, key string) (bool, error)

	// TakeKV atomically reads and removes key. When several callers race on
	// the same key, exactly one of them observes found == true.
	// SECURITY: single-use credentials (authorization codes, refresh tokens)
	// are redeemed exclusively through this method.
	TakeKV(ctx context.Context, key string) (value []byte, found bool, err error)
}

// Pinger is implemented by stores that can report backend health
type Pinger interface {
	Ping(ctx context.Context) error
}

// ValidateEntry checks the arguments shared by every StoreKV implementation
func ValidateEntry(key string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl < 0 {
		return ErrNegativeTTL
	}
	return nil
}

// Key joins key segments with ':' after escaping each segment, so that
// distinct segment tuples can never produce the same key.
//
//	Key("perm", "alice", "read", "profile") // "perm:alice:read:profile"
//	Key("perm", "a:b", "c")                 // "perm:a%3Ab:c"
func Key(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = escapeSegment(s)
	}
	return strings.Join(escaped, ":")
}

// escapeSegment percent-encodes '%' and ':' so the separator stays unambiguous
func escapeSegment(s string) string {
	if !strings.ContainsAny(s, "%:") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			b.WriteString("%25")
		case ':':
			b.WriteString("%3A")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
