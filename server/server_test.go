package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/giantswarm/auth-framework/internal/testutil"
	"github.com/giantswarm/auth-framework/storage"
	"github.com/giantswarm/auth-framework/storage/memory"
	"github.com/giantswarm/auth-framework/storage/mock"
	"github.com/giantswarm/auth-framework/token"
)

const (
	testIssuer      = "https://auth.example.com"
	testAudience    = "https://api.example.com"
	testRedirectURI = "https://app.example.com/callback"
)

var testEpoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// testServerSetup holds common test dependencies
type testServerSetup struct {
	srv    *Server
	store  *memory.Store
	clock  *testutil.MockTime
	logBuf *bytes.Buffer
}

// newTestServer creates a server on a memory store sharing one mock clock.
// mutate may adjust the config before New applies defaults.
func newTestServer(t *testing.T, mutate func(*Config)) *testServerSetup {
	t.Helper()

	clock := testutil.NewMockTime(testEpoch)
	store := memory.New()
	store.SetClock(clock.Now)

	logBuf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	config := &Config{
		Issuer:          testIssuer,
		Audience:        testAudience,
		SupportedScopes: []string{"read:profile", "write:profile", "read:billing"},
		Now:             clock.Now,
	}
	if mutate != nil {
		mutate(config)
	}

	srv, err := New(context.Background(), store, config, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testServerSetup{srv: srv, store: store, clock: clock, logBuf: logBuf}
}

// getLogs returns the captured log output
func (s *testServerSetup) getLogs() string {
	return s.logBuf.String()
}

// noPingStore hides the Pinger implementation of the wrapped store
type noPingStore struct {
	storage.Store
}

func TestNew(t *testing.T) {
	setup := newTestServer(t, nil)
	srv := setup.srv

	if srv.Config.Issuer != testIssuer {
		t.Errorf("Issuer = %q, want %q", srv.Config.Issuer, testIssuer)
	}
	if srv.Logger == nil {
		t.Error("Logger should not be nil")
	}
	if srv.TokenManager() == nil {
		t.Fatal("TokenManager() should not be nil")
	}
	if got := srv.TokenManager().Algorithm(); got != "HS256" {
		t.Errorf("Algorithm() = %q, want HS256", got)
	}
	if !strings.Contains(setup.getLogs(), "ephemeral signing key") {
		t.Error("expected a warning about the ephemeral signing key")
	}
}

func TestNew_NilStore(t *testing.T) {
	_, err := New(context.Background(), nil, &Config{Issuer: testIssuer, Audience: testAudience}, nil)
	if err == nil {
		t.Fatal("New() with nil store should fail")
	}
}

func TestNew_NilConfig(t *testing.T) {
	// Without a config there is no issuer to sign for
	_, err := New(context.Background(), memory.New(), nil, nil)
	if err == nil {
		t.Fatal("New() with nil config should fail without issuer and audience")
	}
}

func TestNew_StorageUnavailable(t *testing.T) {
	store := mock.NewMockStore()
	store.FailWith(errors.New("connection refused"), mock.OpPing)

	_, err := New(context.Background(), store, &Config{Issuer: testIssuer, Audience: testAudience}, nil)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("New() error = %v, want ErrStorageUnavailable", err)
	}
}

func TestNew_StorageProbe(t *testing.T) {
	t.Run("healthy store without Ping", func(t *testing.T) {
		store := mock.NewMockStore()
		_, err := New(context.Background(), noPingStore{store}, &Config{Issuer: testIssuer, Audience: testAudience}, nil)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if store.CallCount(mock.OpStoreKV) != 1 || store.CallCount(mock.OpTakeKV) != 1 {
			t.Errorf("probe calls: StoreKV=%d TakeKV=%d, want 1 each",
				store.CallCount(mock.OpStoreKV), store.CallCount(mock.OpTakeKV))
		}
		if store.Backing.Len() != 0 {
			t.Errorf("probe left %d entries behind", store.Backing.Len())
		}
	})

	t.Run("failing write", func(t *testing.T) {
		store := mock.NewMockStore()
		store.FailWith(errors.New("read-only replica"), mock.OpStoreKV)
		_, err := New(context.Background(), noPingStore{store}, &Config{Issuer: testIssuer, Audience: testAudience}, nil)
		if !errors.Is(err, ErrStorageUnavailable) {
			t.Fatalf("New() error = %v, want ErrStorageUnavailable", err)
		}
	})
}

func TestNew_TokenManager(t *testing.T) {
	tokens, err := token.NewRSAFromKey(testutil.RSAKey(t), token.Config{
		Issuer:   "https://issuer.example.com",
		Audience: "https://resource.example.com",
	})
	if err != nil {
		t.Fatalf("NewRSAFromKey() error = %v", err)
	}

	srv, err := New(context.Background(), memory.New(), &Config{TokenManager: tokens}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.TokenManager() != tokens {
		t.Error("TokenManager() should return the configured manager")
	}
	if srv.Config.Issuer != "https://issuer.example.com" {
		t.Errorf("Issuer = %q, want the manager's issuer", srv.Config.Issuer)
	}
	if srv.Config.Audience != "https://resource.example.com" {
		t.Errorf("Audience = %q, want the manager's audience", srv.Config.Audience)
	}
}

func TestNew_VerifyOnlyTokenManager(t *testing.T) {
	verifier, err := token.NewRSAVerifier(testutil.RSAPublicKeyPEM(t), token.Config{
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	if err != nil {
		t.Fatalf("NewRSAVerifier() error = %v", err)
	}

	_, err = New(context.Background(), memory.New(), &Config{TokenManager: verifier}, nil)
	if !errors.Is(err, token.ErrNoSigningKey) {
		t.Fatalf("New() error = %v, want ErrNoSigningKey", err)
	}
}

func TestNew_DoesNotMutateConfig(t *testing.T) {
	config := &Config{Issuer: testIssuer, Audience: testAudience}
	srv, err := New(context.Background(), memory.New(), config, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if config.AccessTokenTTL != 0 || config.TokenManager != nil {
		t.Error("New() should not modify the caller's config")
	}
	if srv.Config.AccessTokenTTL != DefaultAccessTokenTTL {
		t.Errorf("AccessTokenTTL = %v, want %v", srv.Config.AccessTokenTTL, DefaultAccessTokenTTL)
	}
}
