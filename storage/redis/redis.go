// Package redis provides a Redis-backed implementation of storage.Store.
//
// Entries are written with SET PX so Redis enforces the TTL. Single-use
// entries are redeemed with GETDEL, which is atomic on the server, so several
// framework instances can share one Redis without double redemption.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/auth-framework/instrumentation"
	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/storage"
)

// Default connection settings
const (
	DefaultAddr            = "localhost:6379"
	DefaultDialTimeout     = 5 * time.Second
	DefaultReadTimeout     = 3 * time.Second
	DefaultWriteTimeout    = 3 * time.Second
	DefaultConnectMaxTries = 5
)

const backendName = "redis"

// Config holds Redis connection configuration
type Config struct {
	// Addr is host:port of the Redis server (default: localhost:6379)
	Addr string

	// Username and Password for ACL authentication (optional)
	Username string
	Password string

	// DB selects the logical database
	DB int

	// KeyPrefix is prepended to every key, e.g. "authfw:prod:"
	KeyPrefix string

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s)
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ConnectMaxTries bounds the initial connection attempts (default: 5)
	ConnectMaxTries uint
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ConnectMaxTries == 0 {
		c.ConnectMaxTries = DefaultConnectMaxTries
	}
}

// Store implements storage.Store on top of a Redis client
type Store struct {
	client    goredis.UniversalClient
	keyPrefix string

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
	logger          *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Pinger = (*Store)(nil)
)

// New connects to Redis. The initial PING is retried with exponential backoff;
// if Redis stays unreachable the error wraps storage.ErrStorageUnavailable.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, client.Ping(ctx).Err()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(cfg.ConnectMaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Redis not reachable, retrying",
				"addr", cfg.Addr,
				"error", err,
				"retry_in", next)
		}),
	)
	if err != nil {
		// Close the client to prevent resource leak
		_ = client.Close()
		return nil, fmt.Errorf("%w: connect to redis at %s: %v", storage.ErrStorageUnavailable, cfg.Addr, err)
	}

	logger.Info("Connected to Redis", "addr", cfg.Addr, "db", cfg.DB)
	return NewWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewWithClient wraps a pre-configured client (useful for testing with miniredis)
func NewWithClient(client goredis.UniversalClient, keyPrefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
}

// Close closes the Redis client connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks Redis connectivity
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// ============================================================
// storage.Store Implementation
// ============================================================

// StoreKV writes value with SET, using PX when ttl > 0
func (s *Store) StoreKV(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	ctx, span := s.startStorageSpan(ctx, "store")
	startTime := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "store", err, startTime) }()

	if err = storage.ValidateEntry(key, ttl); err != nil {
		return err
	}

	if ttl > 0 && ttl < time.Millisecond {
		// Redis TTL granularity is one millisecond
		ttl = time.Millisecond
	}
	if err = s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}

	s.logger.Debug("Stored entry",
		"backend", backendName,
		"key_prefix", util.SafeTruncate(key, 12),
		"ttl", ttl)
	return nil
}

// GetKV reads key with GET; redis.Nil is reported as absent
func (s *Store) GetKV(ctx context.Context, key string) (value []byte, found bool, err error) {
	ctx, span := s.startStorageSpan(ctx, "get")
	startTime := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "get", err, startTime) }()

	if key == "" {
		return nil, false, storage.ErrInvalidKey
	}

	value, err = s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(err)
	}
	return value, true, nil
}

// DeleteKV removes key with DEL
func (s *Store) DeleteKV(ctx context.Context, key string) (deleted bool, err error) {
	ctx, span := s.startStorageSpan(ctx, "delete")
	startTime := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "delete", err, startTime) }()

	if key == "" {
		return false, storage.ErrInvalidKey
	}

	n, err := s.client.Del(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// TakeKV reads and removes key with GETDEL
func (s *Store) TakeKV(ctx context.Context, key string) (value []byte, found bool, err error) {
	ctx, span := s.startStorageSpan(ctx, "take")
	startTime := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "take", err, startTime) }()

	if key == "" {
		return nil, false, storage.ErrInvalidKey
	}

	// SECURITY: GETDEL is a single server-side command, so concurrent takers
	// (possibly on different instances) cannot both receive the value.
	value, err = s.client.GetDel(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(err)
	}

	s.logger.Debug("Took entry",
		"backend", backendName,
		"key_prefix", util.SafeTruncate(key, 12))
	return value, true, nil
}

// unavailable wraps a client error so callers can match storage.ErrStorageUnavailable.
// Context errors are returned unchanged.
func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
}

// ============================================================
// Instrumentation Helpers
// ============================================================

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
