package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/auth-framework/security"
	"github.com/giantswarm/auth-framework/token"
)

// EnvPrefix prefixes every environment override, e.g. AUTHFW_FRAMEWORK_ISSUER
const EnvPrefix = "AUTHFW"

// Storage backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// File is the operator-facing configuration document
type File struct {
	Framework       FrameworkConfig       `mapstructure:"framework"`
	Server          ServerConfig          `mapstructure:"server"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Instrumentation InstrumentationConfig `mapstructure:"instrumentation"`
	Security        SecurityConfig        `mapstructure:"security"`
}

// FrameworkConfig configures token issuance
type FrameworkConfig struct {
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	DefaultTokenTTL time.Duration `mapstructure:"default_token_ttl"`

	// HMACSecret selects HS256. Prefer AUTHFW_FRAMEWORK_HMAC_SECRET over the file.
	HMACSecret string `mapstructure:"hmac_secret"`

	// RSAPrivateKeyFile selects RS256 (PKCS#1 or PKCS#8 PEM)
	RSAPrivateKeyFile string `mapstructure:"rsa_private_key_file"`

	KeyID string `mapstructure:"key_id"`
}

// ServerConfig configures the OAuth server
type ServerConfig struct {
	AuthorizationCodeTTL      time.Duration `mapstructure:"authorization_code_ttl"`
	AccessTokenTTL            time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL           time.Duration `mapstructure:"refresh_token_ttl"`
	AllowRefreshTokenRotation bool          `mapstructure:"allow_refresh_token_rotation"`
	RequirePKCE               bool          `mapstructure:"require_pkce"`
	AllowPKCEPlain            bool          `mapstructure:"allow_pkce_plain"`
	SupportedScopes           []string      `mapstructure:"supported_scopes"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the redis backend
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// InstrumentationConfig configures OpenTelemetry
type InstrumentationConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ServiceName     string `mapstructure:"service_name"`
	MetricsExporter string `mapstructure:"metrics_exporter"`
	TracesExporter  string `mapstructure:"traces_exporter"`
	OTLPEndpoint    string `mapstructure:"otlp_endpoint"`
	OTLPInsecure    bool   `mapstructure:"otlp_insecure"`
}

// SecurityConfig configures auditing, encryption at rest and log rate limiting
type SecurityConfig struct {
	AuditEnabled bool `mapstructure:"audit_enabled"`

	// EncryptionKey is a base64 AES-256 key for server records. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`

	// SecurityEventRate limits repeated security log lines per subject and client
	SecurityEventRate  float64 `mapstructure:"security_event_rate"`
	SecurityEventBurst int     `mapstructure:"security_event_burst"`
}

// Default returns the configuration used for absent keys
func Default() *File {
	return &File{
		Framework: FrameworkConfig{
			DefaultTokenTTL: time.Hour,
		},
		Server: ServerConfig{
			AuthorizationCodeTTL:      10 * time.Minute,
			AccessTokenTTL:            time.Hour,
			RefreshTokenTTL:           30 * 24 * time.Hour,
			AllowRefreshTokenRotation: true,
			RequirePKCE:               true,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				KeyPrefix:   "authfw:",
				DialTimeout: 5 * time.Second,
			},
		},
		Instrumentation: InstrumentationConfig{
			ServiceName:     "auth-framework",
			MetricsExporter: "prometheus",
			TracesExporter:  "none",
		},
		Security: SecurityConfig{
			AuditEnabled:       true,
			SecurityEventRate:  1,
			SecurityEventBurst: 5,
		},
	}
}

// Load reads the YAML file at path (optional) and applies AUTHFW_* environment
// overrides on top of the defaults. The result is validated.
func Load(path string) (*File, error) {
	v := viper.New()
	for key, value := range Default().settings() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ValidationError lists every problem found in a configuration
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// ErrInvalid is matched by every *ValidationError
var ErrInvalid = errors.New("invalid configuration")

// Is reports whether target is ErrInvalid
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Validate checks the configuration and returns a *ValidationError listing
// all problems
func (f *File) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	fw := f.Framework
	if fw.Issuer == "" {
		add("framework.issuer is required")
	}
	if fw.Audience == "" {
		add("framework.audience is required")
	}
	switch {
	case fw.HMACSecret != "" && fw.RSAPrivateKeyFile != "":
		add("framework.hmac_secret and framework.rsa_private_key_file are mutually exclusive")
	case fw.HMACSecret == "" && fw.RSAPrivateKeyFile == "":
		add("one of framework.hmac_secret or framework.rsa_private_key_file is required")
	case fw.HMACSecret != "" && len(fw.HMACSecret) < token.MinHMACSecretLength:
		add("framework.hmac_secret must be at least %d bytes", token.MinHMACSecretLength)
	}
	if fw.DefaultTokenTTL < 0 {
		add("framework.default_token_ttl cannot be negative")
	}

	srv := f.Server
	for name, d := range map[string]time.Duration{
		"server.authorization_code_ttl": srv.AuthorizationCodeTTL,
		"server.access_token_ttl":       srv.AccessTokenTTL,
		"server.refresh_token_ttl":      srv.RefreshTokenTTL,
	} {
		if d < 0 {
			add("%s cannot be negative", name)
		}
	}

	switch f.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if f.Storage.Redis.Addr == "" {
			add("storage.redis.addr is required for the redis backend")
		}
	default:
		add("storage.backend must be %q or %q, got %q", BackendMemory, BackendRedis, f.Storage.Backend)
	}

	inst := f.Instrumentation
	switch inst.MetricsExporter {
	case "", "prometheus", "none":
	default:
		add("instrumentation.metrics_exporter must be \"prometheus\" or \"none\", got %q", inst.MetricsExporter)
	}
	switch inst.TracesExporter {
	case "", "none":
	case "otlp":
		if inst.Enabled && inst.OTLPEndpoint == "" {
			add("instrumentation.otlp_endpoint is required for the otlp traces exporter")
		}
	default:
		add("instrumentation.traces_exporter must be \"otlp\" or \"none\", got %q", inst.TracesExporter)
	}

	if f.Security.EncryptionKey != "" {
		if _, err := security.KeyFromBase64(f.Security.EncryptionKey); err != nil {
			add("security.encryption_key: %v", err)
		}
	}
	if f.Security.SecurityEventRate < 0 || f.Security.SecurityEventBurst < 0 {
		add("security.security_event_rate and security_event_burst cannot be negative")
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// settings flattens the configuration into dotted viper keys
func (f *File) settings() map[string]any {
	return map[string]any{
		"framework.issuer":               f.Framework.Issuer,
		"framework.audience":             f.Framework.Audience,
		"framework.default_token_ttl":    f.Framework.DefaultTokenTTL,
		"framework.hmac_secret":          f.Framework.HMACSecret,
		"framework.rsa_private_key_file": f.Framework.RSAPrivateKeyFile,
		"framework.key_id":               f.Framework.KeyID,

		"server.authorization_code_ttl":       f.Server.AuthorizationCodeTTL,
		"server.access_token_ttl":             f.Server.AccessTokenTTL,
		"server.refresh_token_ttl":            f.Server.RefreshTokenTTL,
		"server.allow_refresh_token_rotation": f.Server.AllowRefreshTokenRotation,
		"server.require_pkce":                 f.Server.RequirePKCE,
		"server.allow_pkce_plain":             f.Server.AllowPKCEPlain,
		"server.supported_scopes":             f.Server.SupportedScopes,

		"storage.backend":            f.Storage.Backend,
		"storage.redis.addr":         f.Storage.Redis.Addr,
		"storage.redis.username":     f.Storage.Redis.Username,
		"storage.redis.password":     f.Storage.Redis.Password,
		"storage.redis.db":           f.Storage.Redis.DB,
		"storage.redis.key_prefix":   f.Storage.Redis.KeyPrefix,
		"storage.redis.dial_timeout": f.Storage.Redis.DialTimeout,

		"instrumentation.enabled":          f.Instrumentation.Enabled,
		"instrumentation.service_name":     f.Instrumentation.ServiceName,
		"instrumentation.metrics_exporter": f.Instrumentation.MetricsExporter,
		"instrumentation.traces_exporter":  f.Instrumentation.TracesExporter,
		"instrumentation.otlp_endpoint":    f.Instrumentation.OTLPEndpoint,
		"instrumentation.otlp_insecure":    f.Instrumentation.OTLPInsecure,

		"security.audit_enabled":        f.Security.AuditEnabled,
		"security.encryption_key":       f.Security.EncryptionKey,
		"security.security_event_rate":  f.Security.SecurityEventRate,
		"security.security_event_burst": f.Security.SecurityEventBurst,
	}
}

// document nests settings into sections, rendering durations as strings
func (f *File) document() map[string]any {
	doc := map[string]any{}
	for key, value := range f.settings() {
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		if s, ok := value.([]string); ok && s == nil {
			value = []string{}
		}

		parts := strings.Split(key, ".")
		section := doc
		for _, part := range parts[:len(parts)-1] {
			next, ok := section[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				section[part] = next
			}
			section = next
		}
		section[parts[len(parts)-1]] = value
	}
	return doc
}

// Marshal renders the configuration as a YAML document that Load accepts
func (f *File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# auth-framework configuration.\n")
	buf.WriteString("# Every key can be overridden by " + EnvPrefix + "_<SECTION>_<KEY>, e.g. " + EnvPrefix + "_FRAMEWORK_HMAC_SECRET.\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f.document()); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}
