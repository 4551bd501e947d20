package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/giantswarm/auth-framework/instrumentation"
)

// KeySize is the AES-256 key size in bytes
const KeySize = 32

// ErrDecrypt is returned when a ciphertext cannot be authenticated
var ErrDecrypt = errors.New("failed to decrypt")

// Encryptor encrypts records at rest using AES-256-GCM.
//
// Ciphertexts are laid out as [nonce][sealed]. Callers pass the storage key as
// associated data so a ciphertext cannot be moved to a different key.
type Encryptor struct {
	aead            cipher.AEAD
	enabled         bool
	instrumentation *instrumentation.Instrumentation
}

// NewEncryptor creates a new encryptor.
// If key is nil or empty, encryption is disabled and Seal/Open pass data through.
// The key must be exactly 32 bytes for AES-256.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) == 0 {
		return &Encryptor{enabled: false}, nil
	}

	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be exactly %d bytes for AES-256, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{
		aead:    gcm,
		enabled: true,
	}, nil
}

// SetInstrumentation records encryption operation counts and durations
func (e *Encryptor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	e.instrumentation = inst
}

// Seal encrypts plaintext bound to associatedData
func (e *Encryptor) Seal(ctx context.Context, plaintext, associatedData []byte) ([]byte, error) {
	if e == nil || !e.enabled {
		return plaintext, nil
	}
	start := time.Now()
	defer e.record(ctx, "encrypt", start)

	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends to the nonce slice, producing [nonce][ciphertext]
	return e.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

// Open decrypts data produced by Seal with the same associatedData
func (e *Encryptor) Open(ctx context.Context, data, associatedData []byte) ([]byte, error) {
	if e == nil || !e.enabled {
		return data, nil
	}
	start := time.Now()
	defer e.record(ctx, "decrypt", start)

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize+e.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// IsEnabled returns true if encryption is enabled
func (e *Encryptor) IsEnabled() bool {
	return e != nil && e.enabled
}

func (e *Encryptor) record(ctx context.Context, op string, start time.Time) {
	if e.instrumentation == nil {
		return
	}
	durationMs := float64(time.Since(start).Microseconds()) / 1000
	e.instrumentation.Metrics().RecordEncryptionOperation(ctx, op, durationMs)
}

// GenerateKey generates a new 32-byte encryption key for AES-256
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// KeyFromBase64 decodes a base64-encoded encryption key
func KeyFromBase64(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// KeyToBase64 encodes an encryption key to base64
func KeyToBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
