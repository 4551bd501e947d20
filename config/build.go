package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	authframework "github.com/giantswarm/auth-framework"
	"github.com/giantswarm/auth-framework/instrumentation"
	"github.com/giantswarm/auth-framework/security"
	"github.com/giantswarm/auth-framework/server"
	"github.com/giantswarm/auth-framework/storage"
	"github.com/giantswarm/auth-framework/storage/memory"
	"github.com/giantswarm/auth-framework/storage/redis"
	"github.com/giantswarm/auth-framework/token"
)

// FrameworkConfig returns the orchestrator configuration, reading the RSA
// key file when one is configured
func (f *File) FrameworkConfig() (*authframework.Config, error) {
	cfg := &authframework.Config{
		Issuer:          f.Framework.Issuer,
		Audience:        f.Framework.Audience,
		DefaultTokenTTL: f.Framework.DefaultTokenTTL,
		KeyID:           f.Framework.KeyID,
	}
	if f.Framework.HMACSecret != "" {
		cfg.HMACSecret = []byte(f.Framework.HMACSecret)
	}
	if f.Framework.RSAPrivateKeyFile != "" {
		pem, err := os.ReadFile(f.Framework.RSAPrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read RSA private key: %w", err)
		}
		cfg.RSAPrivateKeyPEM = pem
	}
	return cfg, nil
}

// TokenManager builds a standalone token manager from the framework section
func (f *File) TokenManager() (*token.Manager, error) {
	cfg, err := f.FrameworkConfig()
	if err != nil {
		return nil, err
	}
	tokenConfig := token.Config{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		DefaultTTL: cfg.DefaultTokenTTL,
		KeyID:      cfg.KeyID,
	}
	if len(cfg.HMACSecret) > 0 {
		return token.NewHMAC(cfg.HMACSecret, tokenConfig)
	}
	return token.NewRSA(cfg.RSAPrivateKeyPEM, tokenConfig)
}

// ServerConfig returns the OAuth server configuration signing with tokens
func (f *File) ServerConfig(tokens *token.Manager) *server.Config {
	return &server.Config{
		Issuer:                    f.Framework.Issuer,
		Audience:                  f.Framework.Audience,
		TokenManager:              tokens,
		AuthorizationCodeTTL:      f.Server.AuthorizationCodeTTL,
		AccessTokenTTL:            f.Server.AccessTokenTTL,
		RefreshTokenTTL:           f.Server.RefreshTokenTTL,
		AllowRefreshTokenRotation: f.Server.AllowRefreshTokenRotation,
		RequirePKCE:               f.Server.RequirePKCE,
		AllowPKCEPlain:            f.Server.AllowPKCEPlain,
		SupportedScopes:           f.Server.SupportedScopes,
	}
}

// InstrumentationConfig returns the OpenTelemetry configuration
func (f *File) InstrumentationConfig(version string) instrumentation.Config {
	return instrumentation.Config{
		ServiceName:     f.Instrumentation.ServiceName,
		ServiceVersion:  version,
		Enabled:         f.Instrumentation.Enabled,
		MetricsExporter: f.Instrumentation.MetricsExporter,
		TracesExporter:  f.Instrumentation.TracesExporter,
		OTLPEndpoint:    f.Instrumentation.OTLPEndpoint,
		OTLPInsecure:    f.Instrumentation.OTLPInsecure,
	}
}

// OpenStore opens the configured storage backend. The redis backend retries
// its initial connection.
func (f *File) OpenStore(ctx context.Context, logger *slog.Logger) (storage.Store, error) {
	switch f.Storage.Backend {
	case BackendRedis:
		rc := f.Storage.Redis
		return redis.New(ctx, redis.Config{
			Addr:        rc.Addr,
			Username:    rc.Username,
			Password:    rc.Password,
			DB:          rc.DB,
			KeyPrefix:   rc.KeyPrefix,
			DialTimeout: rc.DialTimeout,
		}, logger)
	case BackendMemory, "":
		store := memory.New()
		store.SetLogger(logger)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", f.Storage.Backend)
	}
}

// Auditor returns the security auditor, disabled when audit_enabled is false
func (f *File) Auditor(logger *slog.Logger) *security.Auditor {
	return security.NewAuditor(logger, f.Security.AuditEnabled)
}

// Encryptor returns the encryptor for server records, or nil when no key is configured
func (f *File) Encryptor() (*security.Encryptor, error) {
	if f.Security.EncryptionKey == "" {
		return nil, nil
	}
	key, err := security.KeyFromBase64(f.Security.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return security.NewEncryptor(key)
}

// SecurityEventRateLimiter returns the limiter for repeated security log lines,
// or nil when the rate is zero
func (f *File) SecurityEventRateLimiter(logger *slog.Logger) *security.RateLimiter {
	if f.Security.SecurityEventRate == 0 {
		return nil
	}
	return security.NewRateLimiter(f.Security.SecurityEventRate, f.Security.SecurityEventBurst, logger)
}
