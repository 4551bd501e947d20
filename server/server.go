package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/auth-framework/instrumentation"
	"github.com/giantswarm/auth-framework/revocation"
	"github.com/giantswarm/auth-framework/security"
	"github.com/giantswarm/auth-framework/storage"
	"github.com/giantswarm/auth-framework/token"
)

// Server implements the OAuth 2.1 authorization server core: client
// registration, authorization grants, code exchange, refresh, revocation and
// introspection. It exposes no network transport.
//
// All state lives in the storage.Store; the Server itself holds no mutable
// per-request state and is safe for concurrent use.
type Server struct {
	store       storage.Store
	tokens      *token.Manager
	revocations *revocation.List

	Encryptor                *security.Encryptor
	Auditor                  *security.Auditor
	SecurityEventRateLimiter *security.RateLimiter // Rate limiter for security event logging (DoS prevention)
	Logger                   *slog.Logger
	Config                   *Config

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
}

// New creates a new OAuth server on top of store. The store is checked
// first; an unreachable store fails with ErrStorageUnavailable.
func New(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := checkStorage(ctx, store); err != nil {
		logger.Error("OAuth server storage check failed", "error", err)
		return nil, err
	}

	cfg := *config
	applySecureDefaults(&cfg, logger)

	tokens, err := resolveTokenManager(&cfg, logger)
	if err != nil {
		return nil, err
	}

	revocations := revocation.New(store, logger)
	revocations.SetClock(cfg.Now)

	return &Server{
		store:       store,
		tokens:      tokens,
		revocations: revocations,
		Logger:      logger,
		Config:      &cfg,
	}, nil
}

// checkStorage verifies the store is reachable, through Ping when available
// and otherwise with a write/read/delete probe
func checkStorage(ctx context.Context, store storage.Store) error {
	if pinger, ok := store.(storage.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return nil
	}

	key := storage.Key("healthcheck", generateRandomToken())
	if err := store.StoreKV(ctx, key, []byte("ok"), DefaultAuthorizationCodeTTL); err != nil {
		return fmt.Errorf("%w: probe write: %v", ErrStorageUnavailable, err)
	}
	if _, _, err := store.TakeKV(ctx, key); err != nil {
		return fmt.Errorf("%w: probe read: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// resolveTokenManager returns the configured token manager, or creates an
// ephemeral HS256 one
func resolveTokenManager(cfg *Config, logger *slog.Logger) (*token.Manager, error) {
	if cfg.TokenManager != nil {
		if !cfg.TokenManager.CanSign() {
			return nil, fmt.Errorf("token manager cannot sign: %w", token.ErrNoSigningKey)
		}
		if cfg.Issuer == "" {
			cfg.Issuer = cfg.TokenManager.Issuer()
		}
		if cfg.Audience == "" {
			cfg.Audience = cfg.TokenManager.Audience()
		}
		return cfg.TokenManager, nil
	}

	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, fmt.Errorf("issuer and audience are required when no token manager is configured")
	}

	secret := make([]byte, token.MinHMACSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	tokens, err := token.NewHMAC(secret, token.Config{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		DefaultTTL: cfg.AccessTokenTTL,
		Now:        cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	logger.Warn("Using an ephemeral signing key",
		"risk", "Access tokens become invalid when the process restarts",
		"recommendation", "Set Config.TokenManager")
	cfg.TokenManager = tokens
	return tokens, nil
}

// TokenManager returns the manager that signs this server's access tokens
func (s *Server) TokenManager() *token.Manager {
	return s.tokens
}

// SetEncryptor enables encryption at rest of client, grant and refresh records.
// Records written before the encryptor was set can no longer be read.
func (s *Server) SetEncryptor(enc *security.Encryptor) {
	s.Encryptor = enc
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetSecurityEventRateLimiter sets the rate limiter for security event logging
// This prevents DoS attacks via log flooding from repeated security events
func (s *Server) SetSecurityEventRateLimiter(rl *security.RateLimiter) {
	s.SecurityEventRateLimiter = rl
}

// SetInstrumentation enables metrics and tracing
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("server")
	}
	if s.Encryptor != nil {
		s.Encryptor.SetInstrumentation(inst)
	}
}

// metrics returns the metrics recorder, or nil when instrumentation is off
func (s *Server) metrics() *instrumentation.Metrics {
	if s.instrumentation == nil {
		return nil
	}
	return s.instrumentation.Metrics()
}

// startSpan starts a span when tracing is enabled; the returned span may be nil
func (s *Server) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, nil
	}
	return s.tracer.Start(ctx, name)
}

// allowSecurityLog reports whether a security event for key may be logged
func (s *Server) allowSecurityLog(key string) bool {
	return s.SecurityEventRateLimiter == nil || s.SecurityEventRateLimiter.Allow(key)
}

// generateRandomToken generates a cryptographically secure random token.
// oauth2.GenerateVerifier returns 32 random bytes, base64url encoded (256 bits).
func generateRandomToken() string {
	return oauth2.GenerateVerifier()
}
