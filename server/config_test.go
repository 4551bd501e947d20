package server

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestApplyTimeDefaults(t *testing.T) {
	tests := []struct {
		name                    string
		input                   *Config
		expectedAuthCodeTTL     time.Duration
		expectedAccessTokenTTL  time.Duration
		expectedRefreshTokenTTL time.Duration
	}{
		{
			name:                    "all zeros should get defaults",
			input:                   &Config{},
			expectedAuthCodeTTL:     10 * time.Minute,
			expectedAccessTokenTTL:  time.Hour,
			expectedRefreshTokenTTL: 30 * 24 * time.Hour,
		},
		{
			name: "custom values should be preserved",
			input: &Config{
				AuthorizationCodeTTL: 5 * time.Minute,
				AccessTokenTTL:       30 * time.Minute,
				RefreshTokenTTL:      24 * time.Hour,
			},
			expectedAuthCodeTTL:     5 * time.Minute,
			expectedAccessTokenTTL:  30 * time.Minute,
			expectedRefreshTokenTTL: 24 * time.Hour,
		},
		{
			name: "negative values should get defaults",
			input: &Config{
				AuthorizationCodeTTL: -1,
				AccessTokenTTL:       -1,
				RefreshTokenTTL:      -1,
			},
			expectedAuthCodeTTL:     DefaultAuthorizationCodeTTL,
			expectedAccessTokenTTL:  DefaultAccessTokenTTL,
			expectedRefreshTokenTTL: DefaultRefreshTokenTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applyTimeDefaults(tt.input)

			if tt.input.AuthorizationCodeTTL != tt.expectedAuthCodeTTL {
				t.Errorf("AuthorizationCodeTTL = %v, want %v", tt.input.AuthorizationCodeTTL, tt.expectedAuthCodeTTL)
			}
			if tt.input.AccessTokenTTL != tt.expectedAccessTokenTTL {
				t.Errorf("AccessTokenTTL = %v, want %v", tt.input.AccessTokenTTL, tt.expectedAccessTokenTTL)
			}
			if tt.input.RefreshTokenTTL != tt.expectedRefreshTokenTTL {
				t.Errorf("RefreshTokenTTL = %v, want %v", tt.input.RefreshTokenTTL, tt.expectedRefreshTokenTTL)
			}
			if tt.input.Now == nil {
				t.Error("Now should default to time.Now")
			}
		})
	}
}

func TestApplySecurityDefaults(t *testing.T) {
	tests := []struct {
		name             string
		input            *Config
		expectedRotation bool
		expectedPKCE     bool
		expectedPlain    bool
	}{
		{
			name:             "default config gets secure defaults",
			input:            &Config{},
			expectedRotation: true,
			expectedPKCE:     true,
			expectedPlain:    false,
		},
		{
			name: "explicit insecure config is preserved",
			input: &Config{
				AllowRefreshTokenRotation: true,
				RequirePKCE:               false,
			},
			expectedRotation: true,
			expectedPKCE:     false,
			expectedPlain:    false,
		},
		{
			name: "plain PKCE opt-in is preserved",
			input: &Config{
				RequirePKCE:    true,
				AllowPKCEPlain: true,
			},
			expectedRotation: false,
			expectedPKCE:     true,
			expectedPlain:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applySecurityDefaults(tt.input, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

			if tt.input.AllowRefreshTokenRotation != tt.expectedRotation {
				t.Errorf("AllowRefreshTokenRotation = %v, want %v", tt.input.AllowRefreshTokenRotation, tt.expectedRotation)
			}
			if tt.input.RequirePKCE != tt.expectedPKCE {
				t.Errorf("RequirePKCE = %v, want %v", tt.input.RequirePKCE, tt.expectedPKCE)
			}
			if tt.input.AllowPKCEPlain != tt.expectedPlain {
				t.Errorf("AllowPKCEPlain = %v, want %v", tt.input.AllowPKCEPlain, tt.expectedPlain)
			}
		})
	}
}

func TestLogSecurityWarnings(t *testing.T) {
	tests := []struct {
		name         string
		config       *Config
		wantWarnings []string
		notWanted    []string
	}{
		{
			name:         "PKCE not required",
			config:       &Config{RequirePKCE: false, AllowRefreshTokenRotation: true},
			wantWarnings: []string{"PKCE is not required"},
			notWanted:    []string{"Plain PKCE", "rotation is DISABLED"},
		},
		{
			name:         "plain allowed and rotation disabled",
			config:       &Config{RequirePKCE: true, AllowPKCEPlain: true},
			wantWarnings: []string{"Plain PKCE method is ALLOWED", "rotation is DISABLED"},
			notWanted:    []string{"PKCE is not required"},
		},
		{
			name:      "secure config",
			config:    &Config{RequirePKCE: true, AllowRefreshTokenRotation: true},
			notWanted: []string{"SECURITY WARNING"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logSecurityWarnings(tt.config, slog.New(slog.NewTextHandler(&buf, nil)))
			logs := buf.String()

			for _, want := range tt.wantWarnings {
				if !strings.Contains(logs, want) {
					t.Errorf("expected warning containing %q, got: %s", want, logs)
				}
			}
			for _, unwanted := range tt.notWanted {
				if strings.Contains(logs, unwanted) {
					t.Errorf("unexpected warning containing %q", unwanted)
				}
			}
		})
	}
}
