package authframework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/auth-framework/instrumentation"
	"github.com/giantswarm/auth-framework/internal/util"
	"github.com/giantswarm/auth-framework/permission"
	"github.com/giantswarm/auth-framework/revocation"
	"github.com/giantswarm/auth-framework/security"
	"github.com/giantswarm/auth-framework/storage"
	"github.com/giantswarm/auth-framework/storage/memory"
	"github.com/giantswarm/auth-framework/token"
)

// Permission check sources recorded in metrics
const (
	permissionSourceScope = "scope"
	permissionSourceGrant = "grant"
	permissionSourceNone  = "none"
)

// Framework orchestrates token issuance, validation and permission checks.
//
// A Framework starts unconfigured. Methods are registered with RegisterMethod
// and Initialize moves it to the initialized state, after which the method
// set is frozen and tokens can be issued. Initialize either succeeds
// completely or leaves the framework unconfigured.
type Framework struct {
	config      *Config
	store       storage.Store
	permissions *permission.Store
	revocations *revocation.List
	logger      *slog.Logger

	auditor         *security.Auditor
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// mu guards methods and the state transition
	mu      sync.Mutex
	methods map[string]Method
	order   []string

	// ready is nil until Initialize succeeds; readers load it without locking
	ready atomic.Pointer[readyState]
}

// readyState is the immutable snapshot published by Initialize
type readyState struct {
	tokens  *token.Manager
	methods map[string]Method
}

// New creates an unconfigured framework. A nil store selects an in-memory
// store and a nil logger selects slog.Default().
func New(config *Config, store storage.Store, logger *slog.Logger) (*Framework, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		mem := memory.New()
		mem.SetLogger(logger)
		store = mem
	}

	cfg := *config
	permissions := permission.New(store)
	permissions.SetLogger(logger)
	revocations := revocation.New(store, logger)
	revocations.SetClock(cfg.clock())

	return &Framework{
		config:      &cfg,
		store:       store,
		permissions: permissions,
		revocations: revocations,
		logger:      logger,
		methods:     make(map[string]Method),
	}, nil
}

// SetAuditor sets the security auditor
func (f *Framework) SetAuditor(auditor *security.Auditor) {
	f.auditor = auditor
}

// SetInstrumentation enables metrics and tracing for the framework, its
// permission store and, when it is an in-memory store, its storage
func (f *Framework) SetInstrumentation(inst *instrumentation.Instrumentation) {
	f.instrumentation = inst
	if inst != nil {
		f.tracer = inst.Tracer("framework")
	}
	f.permissions.SetInstrumentation(inst)

	type instrumentationSetter interface {
		SetInstrumentation(*instrumentation.Instrumentation)
	}
	if setter, ok := f.store.(instrumentationSetter); ok {
		setter.SetInstrumentation(inst)
	}
}

// RegisterMethod adds an authentication method under name. Methods can only
// be registered before Initialize.
func (f *Framework) RegisterMethod(name string, method Method) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ready.Load() != nil {
		return ErrAlreadyInitialized
	}
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidMethod)
	}
	if method == nil {
		return fmt.Errorf("%w: method %q is nil", ErrInvalidMethod, name)
	}
	if !method.Kind().valid() {
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidMethod, method.Kind())
	}
	if _, exists := f.methods[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateMethod, name)
	}

	f.methods[name] = method
	f.order = append(f.order, name)

	f.logger.Debug("Registered auth method", "method", name, "kind", method.Kind())
	return nil
}

// Initialize builds the token manager and initializes every registered
// method in registration order. Any failure returns an *InitializationError
// and leaves the framework unconfigured.
func (f *Framework) Initialize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ready.Load() != nil {
		return ErrAlreadyInitialized
	}

	tokens, err := f.config.newTokenManager()
	if err != nil {
		return f.initializationFailed(ctx, "", err)
	}

	methods := make(map[string]Method, len(f.methods))
	for _, name := range f.order {
		method := f.methods[name]
		if err := method.Initialize(ctx, tokens); err != nil {
			return f.initializationFailed(ctx, name, err)
		}
		methods[name] = method
	}

	f.ready.Store(&readyState{tokens: tokens, methods: methods})

	f.logger.Info("Auth framework initialized",
		"issuer", tokens.Issuer(),
		"audience", tokens.Audience(),
		"algorithm", tokens.Algorithm(),
		"methods", len(methods))
	return nil
}

func (f *Framework) initializationFailed(ctx context.Context, method string, err error) error {
	f.logger.Error("Auth framework initialization failed", "method", method, "error", err)
	f.auditor.LogEvent(ctx, security.Event{
		Type: security.EventInitializationFailed,
		Details: map[string]any{
			"method": method,
		},
	})
	return &InitializationError{Method: method, Err: err}
}

// IsInitialized reports whether Initialize has succeeded
func (f *Framework) IsInitialized() bool {
	return f.ready.Load() != nil
}

// TokenManager returns the token manager, or nil before initialization
func (f *Framework) TokenManager() *token.Manager {
	state := f.ready.Load()
	if state == nil {
		return nil
	}
	return state.tokens
}

// Permissions returns the permission store
func (f *Framework) Permissions() *permission.Store {
	return f.permissions
}

// ====================
// Tokens
// ====================

// CreateAuthToken issues a token for subject through the named method.
// Without WithTTL the configured default lifetime applies.
func (f *Framework) CreateAuthToken(ctx context.Context, subject string, scopes []string, methodName string, opts ...IssueOption) (*oauth2.Token, error) {
	state := f.ready.Load()
	if state == nil {
		return nil, ErrNotInitialized
	}
	method, ok := state.methods[methodName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, methodName)
	}

	options := issueOptions{ttl: state.tokens.DefaultTTL()}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := f.startSpan(ctx, "framework.create_auth_token")
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrAuthMethod, methodName))

	tok, claims, err := method.IssueToken(ctx, subject, scopes, options.ttl)
	instrumentation.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if f.instrumentation != nil {
		f.instrumentation.Metrics().RecordTokenIssued(ctx, methodName, state.tokens.Algorithm())
	}
	f.auditor.LogTokenIssued(ctx, subject, "", methodName, util.JoinScopes(claims.Scopes))

	f.logger.Debug("Issued auth token",
		"method", methodName,
		"subject", subject,
		"ttl", options.ttl)
	return tok, nil
}

// Validate verifies tok and returns its claims. Validation failures are
// *token.ValidationError values; a revoked token yields ErrTokenRevoked.
func (f *Framework) Validate(ctx context.Context, tok string) (*token.Claims, error) {
	state := f.ready.Load()
	if state == nil {
		return nil, ErrNotInitialized
	}
	if !token.LooksLikeJWT(tok) {
		return nil, ErrUnsupportedToken
	}

	ctx, span := f.startSpan(ctx, "framework.validate_token")
	claims, err := f.validate(ctx, state.tokens, tok)
	instrumentation.EndSpan(span, err)
	return claims, err
}

func (f *Framework) validate(ctx context.Context, tokens *token.Manager, tok string) (*token.Claims, error) {
	claims, err := tokens.ValidateJWTToken(tok)
	if err != nil {
		reason := string(token.ReasonOf(err))
		if f.instrumentation != nil {
			f.instrumentation.Metrics().RecordTokenValidation(ctx, reason)
		}
		f.auditor.LogTokenValidationFailed(ctx, reason)
		return nil, err
	}

	if claims.ID != "" {
		revoked, err := f.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			f.auditor.LogEvent(ctx, security.Event{
				Type:    security.EventRevokedTokenPresented,
				Subject: claims.Subject,
			})
			return nil, ErrTokenRevoked
		}
	}

	if f.instrumentation != nil {
		f.instrumentation.Metrics().RecordTokenValidation(ctx, "")
	}
	return claims, nil
}

// ValidateToken reports whether tok is currently valid. Routine invalidity
// (tampered, expired, wrong issuer, revoked, ...) yields false with a nil
// error; an unsupported token structure, an uninitialized framework or a
// storage failure is returned as an error.
func (f *Framework) ValidateToken(ctx context.Context, tok string) (bool, error) {
	_, err := f.Validate(ctx, tok)
	if err == nil {
		return true, nil
	}
	if isRoutineInvalidity(err) {
		return false, nil
	}
	return false, err
}

// RevokeToken puts the token's jti on the revocation list until the token
// expires. Revoking an expired token is a no-op.
func (f *Framework) RevokeToken(ctx context.Context, tok string) error {
	state := f.ready.Load()
	if state == nil {
		return ErrNotInitialized
	}

	claims, err := state.tokens.ValidateJWTToken(tok)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil
		}
		return err
	}

	if err := f.revocations.Revoke(ctx, claims.ID, claims.Expiry()); err != nil {
		return err
	}

	if f.instrumentation != nil {
		f.instrumentation.Metrics().RecordTokenRevocation(ctx, "access")
	}
	f.auditor.LogTokenRevoked(ctx, claims.Subject, "", "access")
	return nil
}

// isRoutineInvalidity reports whether err describes a token that is simply
// not acceptable, as opposed to a failure to decide
func isRoutineInvalidity(err error) bool {
	var validationErr *token.ValidationError
	return errors.As(err, &validationErr) || errors.Is(err, ErrTokenRevoked)
}

// ====================
// Permissions
// ====================

// GrantPermission records that subject may perform action on resource
func (f *Framework) GrantPermission(ctx context.Context, subject, action, resource string) error {
	if err := f.permissions.Grant(ctx, subject, action, resource); err != nil {
		return err
	}
	f.auditor.LogPermissionChange(ctx, security.EventPermissionGranted, subject, permission.Scope(action, resource))
	return nil
}

// RevokePermission removes a grant and reports whether it existed. Tokens
// already carrying the matching scope keep it until they expire or are revoked.
func (f *Framework) RevokePermission(ctx context.Context, subject, action, resource string) (bool, error) {
	revoked, err := f.permissions.Revoke(ctx, subject, action, resource)
	if err != nil {
		return false, err
	}
	if revoked {
		f.auditor.LogPermissionChange(ctx, security.EventPermissionRevoked, subject, permission.Scope(action, resource))
	}
	return revoked, nil
}

// CheckPermission reports whether tok authorizes action on resource.
//
// The token must be valid; an invalid or revoked token is never authorized.
// The permission is effective when the token's scopes contain
// "action:resource" or the permission store holds the grant for the token's
// subject.
func (f *Framework) CheckPermission(ctx context.Context, tok, action, resource string) (bool, error) {
	ctx, span := f.startSpan(ctx, "framework.check_permission")
	instrumentation.AddPermissionAttributes(span, action, resource)

	allowed, source, err := f.checkPermission(ctx, tok, action, resource)
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrPermissionSource, source))
	instrumentation.EndSpan(span, err)
	if err != nil {
		return false, err
	}

	if f.instrumentation != nil {
		f.instrumentation.Metrics().RecordPermissionCheck(ctx, allowed, source)
	}
	return allowed, nil
}

func (f *Framework) checkPermission(ctx context.Context, tok, action, resource string) (bool, string, error) {
	claims, err := f.Validate(ctx, tok)
	if err != nil {
		if isRoutineInvalidity(err) {
			return false, permissionSourceNone, nil
		}
		return false, permissionSourceNone, err
	}

	if permission.HasScope(claims.Scopes, action, resource) {
		return true, permissionSourceScope, nil
	}

	granted, err := f.permissions.Check(ctx, claims.Subject, action, resource)
	if err != nil {
		return false, permissionSourceNone, err
	}
	if granted {
		return true, permissionSourceGrant, nil
	}

	f.auditor.LogEvent(ctx, security.Event{
		Type:    security.EventPermissionDenied,
		Subject: claims.Subject,
		Details: map[string]any{
			"scope": permission.Scope(action, resource),
		},
	})
	return false, permissionSourceNone, nil
}

// startSpan starts a span when tracing is enabled; the returned span may be nil
func (f *Framework) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if f.tracer == nil {
		return ctx, nil
	}
	return f.tracer.Start(ctx, name)
}
