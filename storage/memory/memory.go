// Package memory provides an in-memory implementation of storage.Store.
// It is suitable for development, testing, and single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/auth-framework/instrumentation"
	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/storage"
)

const (
	// backendName labels metrics and spans emitted by this store
	backendName = "memory"

	// keyLogLength is the number of key characters included in debug logs.
	// Keys embed authorization codes and refresh tokens, so only a prefix is logged.
	keyLogLength = 12
)

// entry is a stored value and its absolute expiry (zero means no expiry)
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is an in-memory implementation of storage.Store.
//
// A single RWMutex guards the map, so every operation on a key is linearizable.
// Expired entries are dropped when they are read; no goroutines are started.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time

	// Atomic counter for metrics (lock-free access during metric collection)
	entriesCountAtomic atomic.Int64

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
	logger          *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Pinger = (*Store)(nil)
)

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger != nil {
		s.logger = logger
	}
}

// SetClock replaces the time source used for TTL bookkeeping
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.now = now
	}
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
	s.entriesCountAtomic.Store(int64(len(s.entries)))
	s.mu.Unlock()

	if inst != nil {
		if err := inst.RegisterStorageSizeCallback(backendName, s.entriesCountAtomic.Load); err != nil {
			s.logger.Warn("Failed to register storage size callback", "error", err)
		}
	}
}

// Ping always succeeds; the memory store cannot become unreachable
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// ============================================================
// storage.Store Implementation
// ============================================================

// StoreKV writes a copy of value under key
func (s *Store) StoreKV(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	ctx, span := s.startStorageSpan(ctx, "store")
	startTime := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "store", err, startTime) }()

	if err = storage.ValidateEntry(key, ttl); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: cloneBytes(value)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	if _, existed := s.entries[key]; !existed {
		s.entriesCountAtomic.Add(1)
	}
	s.entries[key] = e

	s.logger.Debug("Stored entry",
		"key_prefix", util.SafeTruncate(key, keyLogLength),
		"ttl", ttl)
	return nil
}

// GetKV returns a copy of the value stored under key
func (s *Store) GetKV(ctx context.Context, key string) (value []byte, found bool, err error) {
	ctx, span := s.startStorageSpan(ctx, "get")
	startTime := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "get", err, startTime) }()

	if key == "" {
		return nil, false, storage.ErrInvalidKey
	}
	if err = ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	e, ok := s.entries[key]
	now := s.now()
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if e.expired(now) {
		s.dropIfExpired(key)
		return nil, false, nil
	}
	return cloneBytes(e.value), true, nil
}

// DeleteKV removes key and reports whether a live entry existed
func (s *Store) DeleteKV(ctx context.Context, key string) (deleted bool, err error) {
	ctx, span := s.startStorageSpan(ctx, "delete")
	startTime := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "delete", err, startTime) }()

	if key == "" {
		return false, storage.ErrInvalidKey
	}
	if err = ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.removeLocked(key)
	return ok && !e.expired(s.now()), nil
}

// TakeKV atomically reads and removes key
func (s *Store) TakeKV(ctx context.Context, key string) (value []byte, found bool, err error) {
	ctx, span := s.startStorageSpan(ctx, "take")
	startTime := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "take", err, startTime) }()

	if key == "" {
		return nil, false, storage.ErrInvalidKey
	}
	if err = ctx.Err(); err != nil {
		return nil, false, err
	}

	// SECURITY: read and delete happen under one write lock so concurrent
	// takers cannot both observe the entry.
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.removeLocked(key)
	if !ok || e.expired(s.now()) {
		return nil, false, nil
	}

	s.logger.Debug("Took entry", "key_prefix", util.SafeTruncate(key, keyLogLength))
	return e.value, true, nil
}

// ============================================================
// Maintenance
// ============================================================

// Len returns the number of entries held, including expired entries not yet read
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Purge drops every expired entry and returns how many were removed.
// Reads already ignore expired entries; Purge only reclaims memory.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			s.removeLocked(key)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("Purged expired entries",
			"removed", removed,
			"remaining", len(s.entries))
	}
	return removed
}

// dropIfExpired removes key if it is still expired once the write lock is held
func (s *Store) dropIfExpired(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.expired(s.now()) {
		s.removeLocked(key)
	}
}

// removeLocked deletes key. Must be called with the write lock held.
func (s *Store) removeLocked(key string) (entry, bool) {
	e, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
		s.entriesCountAtomic.Add(-1)
	}
	return e, ok
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ============================================================
// Instrumentation Helpers
// ============================================================

// startStorageSpan starts a new span for a storage operation
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String(instrumentation.AttrStorageOperation, operation),
			attribute.String(instrumentation.AttrStorageBackend, backendName),
		))
}

// recordStorageOperation records metrics for a storage operation and ends the span
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}
	defer instrumentation.EndSpan(span, err)

	result := "success"
	if err != nil {
		result = "error"
	}

	durationMs := float64(time.Since(startTime).Microseconds()) / 1000
	s.instrumentation.Metrics().RecordStorageOperation(ctx, backendName, operation, result, durationMs)
}
