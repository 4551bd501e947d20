package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/auth-framework/storage"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, "test:", nil), mr
}

func TestStore_StoreAndGet(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreKV(ctx, "greeting", []byte("hello"), storage.NoExpiry))

	got, found, err := s.GetKV(ctx, "greeting")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), got)

	// Key prefix is applied on the server side
	assert.True(t, mr.Exists("test:greeting"))
	assert.Equal(t, time.Duration(0), mr.TTL("test:greeting"))
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t)

	got, found, err := s.GetKV(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestStore_TTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreKV(ctx, "short", []byte("v"), 2*time.Second))
	assert.Equal(t, 2*time.Second, mr.TTL("test:short"))

	mr.FastForward(1 * time.Second)
	_, found, err := s.GetKV(ctx, "short")
	require.NoError(t, err)
	assert.True(t, found, "entry should be live before its TTL elapses")

	mr.FastForward(1 * time.Second)
	_, found, err = s.GetKV(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found, "entry should be absent once its TTL elapses")
}

func TestStore_InvalidArguments(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.StoreKV(ctx, "", []byte("v"), 0), storage.ErrInvalidKey)
	assert.ErrorIs(t, s.StoreKV(ctx, "k", []byte("v"), -time.Second), storage.ErrNegativeTTL)

	_, _, err := s.GetKV(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
	_, err = s.DeleteKV(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
	_, _, err = s.TakeKV(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
}

func TestStore_Delete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreKV(ctx, "k", []byte("v"), storage.NoExpiry))

	deleted, err := s.DeleteKV(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteKV(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStore_TakeIsSingleUse(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreKV(ctx, "code", []byte("grant"), time.Minute))

	got, found, err := s.TakeKV(ctx, "code")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("grant"), got)

	_, found, err = s.TakeKV(ctx, "code")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_ConcurrentTake(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreKV(ctx, "code", []byte("grant"), time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, found, err := s.TakeKV(ctx, "code")
			if err == nil && found {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestStore_Unavailable(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	mr.Close()

	assert.ErrorIs(t, s.Ping(ctx), storage.ErrStorageUnavailable)
	assert.ErrorIs(t, s.StoreKV(ctx, "k", []byte("v"), 0), storage.ErrStorageUnavailable)
	_, _, err := s.GetKV(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
	_, _, err = s.TakeKV(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := New(context.Background(), Config{Addr: mr.Addr(), KeyPrefix: "p:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.StoreKV(context.Background(), "k", []byte("v"), 0))
	assert.True(t, mr.Exists("p:k"))
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{
		Addr:            addr,
		DialTimeout:     100 * time.Millisecond,
		ConnectMaxTries: 1,
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
}
