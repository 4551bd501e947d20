// Package mock provides a storage.Store for testing failure paths.
//
// MockStore delegates to an in-memory store by default. Each operation can be
// overridden through its Func field, and every call is counted.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/giantswarm/auth-framework/storage"
	"github.com/giantswarm/auth-framework/storage/memory"
)

// Operation names used as CallCounts keys
const (
	OpStoreKV  = "StoreKV"
	OpGetKV    = "GetKV"
	OpDeleteKV = "DeleteKV"
	OpTakeKV   = "TakeKV"
	OpPing     = "Ping"
)

// MockStore is a mock implementation of storage.Store and storage.Pinger
type MockStore struct {
	mu         sync.Mutex
	callCounts map[string]int

	// Backing is the store used by the default Func implementations
	Backing *memory.Store

	StoreKVFunc  func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetKVFunc    func(ctx context.Context, key string) ([]byte, bool, error)
	DeleteKVFunc func(ctx context.Context, key string) (bool, error)
	TakeKVFunc   func(ctx context.Context, key string) ([]byte, bool, error)
	PingFunc     func(ctx context.Context) error
}

// Compile-time interface checks
var (
	_ storage.Store  = (*MockStore)(nil)
	_ storage.Pinger = (*MockStore)(nil)
)

// NewMockStore creates a mock store backed by a fresh in-memory store
func NewMockStore() *MockStore {
	m := &MockStore{
		callCounts: make(map[string]int),
		Backing:    memory.New(),
	}
	m.Reset()
	return m
}

// Reset restores the default (delegating) implementations. Call counts are kept.
func (m *MockStore) Reset() {
	m.StoreKVFunc = m.Backing.StoreKV
	m.GetKVFunc = m.Backing.GetKV
	m.DeleteKVFunc = m.Backing.DeleteKV
	m.TakeKVFunc = m.Backing.TakeKV
	m.PingFunc = m.Backing.Ping
}

// FailWith makes the named operations return err. With no operations named,
// every operation fails.
func (m *MockStore) FailWith(err error, ops ...string) {
	if len(ops) == 0 {
		ops = []string{OpStoreKV, OpGetKV, OpDeleteKV, OpTakeKV, OpPing}
	}
	for _, op := range ops {
		switch op {
		case OpStoreKV:
			m.StoreKVFunc = func(context.Context, string, []byte, time.Duration) error { return err }
		case OpGetKV:
			m.GetKVFunc = func(context.Context, string) ([]byte, bool, error) { return nil, false, err }
		case OpDeleteKV:
			m.DeleteKVFunc = func(context.Context, string) (bool, error) { return false, err }
		case OpTakeKV:
			m.TakeKVFunc = func(context.Context, string) ([]byte, bool, error) { return nil, false, err }
		case OpPing:
			m.PingFunc = func(context.Context) error { return err }
		}
	}
}

// Unavailable makes every operation fail with storage.ErrStorageUnavailable
func (m *MockStore) Unavailable() {
	m.FailWith(storage.ErrStorageUnavailable)
}

// StoreKV records the call and runs StoreKVFunc
func (m *MockStore) StoreKV(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.count(OpStoreKV)
	return m.StoreKVFunc(ctx, key, value, ttl)
}

// GetKV records the call and runs GetKVFunc
func (m *MockStore) GetKV(ctx context.Context, key string) ([]byte, bool, error) {
	m.count(OpGetKV)
	return m.GetKVFunc(ctx, key)
}

// DeleteKV records the call and runs DeleteKVFunc
func (m *MockStore) DeleteKV(ctx context.Context, key string) (bool, error) {
	m.count(OpDeleteKV)
	return m.DeleteKVFunc(ctx, key)
}

// TakeKV records the call and runs TakeKVFunc
func (m *MockStore) TakeKV(ctx context.Context, key string) ([]byte, bool, error) {
	m.count(OpTakeKV)
	return m.TakeKVFunc(ctx, key)
}

// Ping records the call and runs PingFunc
func (m *MockStore) Ping(ctx context.Context) error {
	m.count(OpPing)
	return m.PingFunc(ctx)
}

// CallCount returns how many times op was called
func (m *MockStore) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCounts[op]
}

// ResetCallCounts resets all call counters
func (m *MockStore) ResetCallCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCounts = make(map[string]int)
}

func (m *MockStore) count(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCounts[op]++
}
