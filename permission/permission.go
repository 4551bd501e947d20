// Package permission stores (subject, action, resource) grants on top of
// storage.Store and provides helpers for "action:resource" scope strings.
//
// Grants are additive facts without expiry. Absence of a grant means deny.
// Matching is exact and case-sensitive; no wildcard semantics are defined.
package permission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/giantswarm/auth-framework/instrumentation"
	"github.com/giantswarm/auth-framework/storage"
)

const (
	keyNamespace = "perm"

	// ScopeSeparator separates action and resource in a scope string
	ScopeSeparator = ":"
)

// ErrInvalidPermission is returned for empty components or an action containing ':'
var ErrInvalidPermission = errors.New("invalid permission")

// Permission is a (subject, action, resource) tuple
type Permission struct {
	Subject  string
	Action   string
	Resource string
}

// Validate checks that every component is set and that the action can be
// represented unambiguously as a scope string
func (p Permission) Validate() error {
	switch {
	case p.Subject == "":
		return fmt.Errorf("%w: subject is empty", ErrInvalidPermission)
	case p.Action == "":
		return fmt.Errorf("%w: action is empty", ErrInvalidPermission)
	case p.Resource == "":
		return fmt.Errorf("%w: resource is empty", ErrInvalidPermission)
	case strings.Contains(p.Action, ScopeSeparator):
		return fmt.Errorf("%w: action %q contains %q", ErrInvalidPermission, p.Action, ScopeSeparator)
	}
	return nil
}

// Scope returns the "action:resource" scope string for the permission
func (p Permission) Scope() string {
	return Scope(p.Action, p.Resource)
}

func (p Permission) key() string {
	return storage.Key(keyNamespace, p.Subject, p.Action, p.Resource)
}

// record is the persisted value of a grant
type record struct {
	GrantedAt time.Time `json:"granted_at"`
}

// Store persists permission grants
type Store struct {
	store           storage.Store
	logger          *slog.Logger
	instrumentation *instrumentation.Instrumentation
	now             func() time.Time
}

// New creates a permission store backed by store
func New(store storage.Store) *Store {
	return &Store{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetInstrumentation sets OpenTelemetry instrumentation
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
}

// Grant records the permission. Granting an existing tuple is a no-op.
func (s *Store) Grant(ctx context.Context, subject, action, resource string) error {
	p := Permission{Subject: subject, Action: action, Resource: resource}
	if err := p.Validate(); err != nil {
		return err
	}

	_, found, err := s.store.GetKV(ctx, p.key())
	if err != nil {
		return fmt.Errorf("failed to read permission: %w", err)
	}
	if found {
		return nil
	}

	data, err := json.Marshal(record{GrantedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode permission: %w", err)
	}
	if err := s.store.StoreKV(ctx, p.key(), data, storage.NoExpiry); err != nil {
		return fmt.Errorf("failed to store permission: %w", err)
	}

	s.logger.Debug("Permission granted",
		"subject", subject,
		"scope", p.Scope())
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordPermissionChange(ctx, "grant")
	}
	return nil
}

// Check reports whether exactly this tuple was granted
func (s *Store) Check(ctx context.Context, subject, action, resource string) (bool, error) {
	p := Permission{Subject: subject, Action: action, Resource: resource}
	if err := p.Validate(); err != nil {
		return false, err
	}

	_, found, err := s.store.GetKV(ctx, p.key())
	if err != nil {
		return false, fmt.Errorf("failed to read permission: %w", err)
	}
	return found, nil
}

// Revoke deletes the grant and reports whether it existed
func (s *Store) Revoke(ctx context.Context, subject, action, resource string) (bool, error) {
	p := Permission{Subject: subject, Action: action, Resource: resource}
	if err := p.Validate(); err != nil {
		return false, err
	}

	deleted, err := s.store.DeleteKV(ctx, p.key())
	if err != nil {
		return false, fmt.Errorf("failed to delete permission: %w", err)
	}
	if deleted {
		s.logger.Debug("Permission revoked",
			"subject", subject,
			"scope", p.Scope())
		if s.instrumentation != nil {
			s.instrumentation.Metrics().RecordPermissionChange(ctx, "revoke")
		}
	}
	return deleted, nil
}

// ============================================================
// Scope Strings
// ============================================================

// Scope builds the "action:resource" scope string
func Scope(action, resource string) string {
	return action + ScopeSeparator + resource
}

// ParseScope splits a scope at its first ':'. Resources may themselves contain ':'.
func ParseScope(scope string) (action, resource string, ok bool) {
	action, resource, ok = strings.Cut(scope, ScopeSeparator)
	if !ok || action == "" || resource == "" {
		return "", "", false
	}
	return action, resource, true
}

// HasScope reports whether scopes contains exactly "action:resource"
func HasScope(scopes []string, action, resource string) bool {
	want := Scope(action, resource)
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
