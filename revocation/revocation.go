// Package revocation tracks revoked access tokens by their jti claim.
//
// A revoked jti is stored with a TTL equal to the remaining token lifetime,
// so the list never outgrows the set of tokens that could still validate.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/storage"
)

const keyNamespace = "revoked"

var (
	// ErrEmptyTokenID is returned when a token without a jti is revoked or checked
	ErrEmptyTokenID = errors.New("token id (jti) cannot be empty")

	// ErrTokenRevoked is returned by validators for a token on the revocation list
	ErrTokenRevoked = errors.New("token has been revoked")
)

// List is a storage-backed revocation list
type List struct {
	store  storage.Store
	now    func() time.Time
	logger *slog.Logger
}

// New creates a revocation list on top of store
func New(store storage.Store, logger *slog.Logger) *List {
	if logger == nil {
		logger = slog.Default()
	}
	return &List{
		store:  store,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the time source used to compute remaining lifetimes
func (l *List) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Revoke records jti as revoked until expiresAt. A token that has already
// expired is not recorded, since validation rejects it anyway.
func (l *List) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return ErrEmptyTokenID
	}

	remaining := expiresAt.Sub(l.now())
	if remaining <= 0 {
		l.logger.Debug("Skipping revocation of expired token", "jti_prefix", util.SafeTruncate(jti, 8))
		return nil
	}

	value := []byte(strconv.FormatInt(l.now().Unix(), 10))
	if err := l.store.StoreKV(ctx, key(jti), value, remaining); err != nil {
		return fmt.Errorf("failed to record token revocation: %w", err)
	}

	l.logger.Debug("Token revoked",
		"jti_prefix", util.SafeTruncate(jti, 8),
		"remaining", remaining)
	return nil
}

// IsRevoked reports whether jti has been revoked
func (l *List) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, ErrEmptyTokenID
	}
	_, found, err := l.store.GetKV(ctx, key(jti))
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return found, nil
}

func key(jti string) string {
	return storage.Key(keyNamespace, jti)
}
