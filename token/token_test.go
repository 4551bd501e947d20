package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/auth-framework/internal/testutil"
)

const (
	testIssuer   = "https://auth.example.com"
	testAudience = "https://api.example.com"
)

var testEpoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testConfig(clock *testutil.MockTime) Config {
	cfg := Config{Issuer: testIssuer, Audience: testAudience}
	if clock != nil {
		cfg.Now = clock.Now
	}
	return cfg
}

func newTestHMAC(t *testing.T, clock *testutil.MockTime) *Manager {
	t.Helper()
	m, err := NewHMAC(testutil.TestHMACSecret, testConfig(clock))
	if err != nil {
		t.Fatalf("NewHMAC() error = %v", err)
	}
	return m
}

func newTestRSA(t *testing.T, clock *testutil.MockTime) *Manager {
	t.Helper()
	m, err := NewRSA(testutil.RSAPrivateKeyPKCS8PEM(t), testConfig(clock))
	if err != nil {
		t.Fatalf("NewRSA() error = %v", err)
	}
	return m
}

func encodeSegment(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

func assertReason(t *testing.T, err error, want Reason) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error with reason %q, got nil", want)
	}
	if got := ReasonOf(err); got != want {
		t.Fatalf("reason = %q, want %q (err = %v)", got, want, err)
	}
}

func TestNewHMAC(t *testing.T) {
	tests := []struct {
		name    string
		secret  []byte
		config  Config
		wantErr error
	}{
		{name: "valid", secret: testutil.TestHMACSecret, config: testConfig(nil)},
		{name: "short secret", secret: []byte("too-short"), config: testConfig(nil), wantErr: ErrInvalidKey},
		{name: "empty secret", secret: nil, config: testConfig(nil), wantErr: ErrSigning},
		{name: "missing issuer", secret: testutil.TestHMACSecret, config: Config{Audience: testAudience}},
		{name: "missing audience", secret: testutil.TestHMACSecret, config: Config{Issuer: testIssuer}},
		{name: "negative default ttl", secret: testutil.TestHMACSecret, config: Config{Issuer: testIssuer, Audience: testAudience, DefaultTTL: -time.Second}, wantErr: ErrNegativeTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewHMAC(tt.secret, tt.config)
			wantFail := tt.wantErr != nil || tt.config.Issuer == "" || tt.config.Audience == ""
			if !wantFail {
				if err != nil {
					t.Fatalf("NewHMAC() error = %v", err)
				}
				if m.Algorithm() != AlgorithmHS256 {
					t.Errorf("Algorithm() = %q, want %q", m.Algorithm(), AlgorithmHS256)
				}
				if m.DefaultTTL() != DefaultTTL {
					t.Errorf("DefaultTTL() = %v, want %v", m.DefaultTTL(), DefaultTTL)
				}
				return
			}
			if err == nil {
				t.Fatal("NewHMAC() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("NewHMAC() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewHMAC_CopiesSecret(t *testing.T) {
	secret := append([]byte(nil), testutil.TestHMACSecret...)
	m, err := NewHMAC(secret, testConfig(nil))
	if err != nil {
		t.Fatalf("NewHMAC() error = %v", err)
	}
	signed, err := m.CreateJWTToken("alice", nil)
	if err != nil {
		t.Fatalf("CreateJWTToken() error = %v", err)
	}

	secret[0] ^= 0xff
	if _, err := m.ValidateJWTToken(signed); err != nil {
		t.Errorf("mutating caller secret affected manager: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	clock := testutil.NewMockTime(testEpoch)
	managers := map[string]*Manager{
		"HS256": newTestHMAC(t, clock),
		"RS256": newTestRSA(t, clock),
	}

	scopeSets := [][]string{
		nil,
		{"read:docs"},
		{"read:docs", "write:docs", "admin"},
	}

	for alg, m := range managers {
		for _, scopes := range scopeSets {
			t.Run(alg+"/"+strings.Join(scopes, ","), func(t *testing.T) {
				signed, err := m.CreateJWTTokenWithTTL("alice", scopes, 15*time.Minute)
				if err != nil {
					t.Fatalf("CreateJWTTokenWithTTL() error = %v", err)
				}
				if !LooksLikeJWT(signed) {
					t.Fatalf("token %q is not a compact JWT", signed)
				}

				claims, err := m.ValidateJWTToken(signed)
				if err != nil {
					t.Fatalf("ValidateJWTToken() error = %v", err)
				}
				if claims.Subject != "alice" {
					t.Errorf("Subject = %q, want alice", claims.Subject)
				}
				if claims.Issuer != testIssuer {
					t.Errorf("Issuer = %q, want %q", claims.Issuer, testIssuer)
				}
				if claims.Audience != testAudience {
					t.Errorf("Audience = %q, want %q", claims.Audience, testAudience)
				}
				want := scopes
				if want == nil {
					want = []string{}
				}
				if !reflect.DeepEqual(claims.Scopes, want) {
					t.Errorf("Scopes = %v, want %v", claims.Scopes, want)
				}
				if !claims.IssuedAt.Time.Equal(testEpoch) {
					t.Errorf("IssuedAt = %v, want %v", claims.IssuedAt.Time, testEpoch)
				}
				if !claims.Expiry().Equal(testEpoch.Add(15 * time.Minute)) {
					t.Errorf("Expiry = %v, want %v", claims.Expiry(), testEpoch.Add(15*time.Minute))
				}
				if claims.ID == "" {
					t.Error("ID (jti) should be set")
				}
			})
		}
	}
}

func TestCreateJWTToken_DefaultTTL(t *testing.T) {
	clock := testutil.NewMockTime(testEpoch)
	m := newTestHMAC(t, clock)

	signed, err := m.CreateJWTToken("alice", []string{"read"})
	if err != nil {
		t.Fatalf("CreateJWTToken() error = %v", err)
	}
	claims, err := m.ValidateJWTToken(signed)
	if err != nil {
		t.Fatalf("ValidateJWTToken() error = %v", err)
	}
	if !claims.Expiry().Equal(testEpoch.Add(DefaultTTL)) {
		t.Errorf("Expiry = %v, want %v", claims.Expiry(), testEpoch.Add(DefaultTTL))
	}
}

func TestCreateJWTToken_UniqueIDs(t *testing.T) {
	m := newTestHMAC(t, nil)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		_, claims, err := m.IssueJWTToken("alice", nil, time.Minute)
		if err != nil {
			t.Fatalf("IssueJWTToken() error = %v", err)
		}
		if seen[claims.ID] {
			t.Fatalf("duplicate jti %q", claims.ID)
		}
		seen[claims.ID] = true
	}
}

func TestCreateJWTToken_ScopesAreCopied(t *testing.T) {
	m := newTestHMAC(t, nil)
	scopes := []string{"read"}

	_, claims, err := m.IssueJWTToken("alice", scopes, time.Minute)
	if err != nil {
		t.Fatalf("IssueJWTToken() error = %v", err)
	}
	scopes[0] = "admin"
	if claims.Scopes[0] != "read" {
		t.Errorf("claims share the caller's scope slice")
	}
}

func TestCreateJWTToken_InvalidInput(t *testing.T) {
	m := newTestHMAC(t, nil)

	if _, err := m.CreateJWTTokenWithTTL("alice", nil, -time.Second); !errors.Is(err, ErrNegativeTTL) {
		t.Errorf("negative ttl: error = %v, want ErrNegativeTTL", err)
	}
	if _, err := m.CreateJWTToken("", nil); !errors.Is(err, ErrEmptySubject) {
		t.Errorf("empty subject: error = %v, want ErrEmptySubject", err)
	}
}

func TestExpiry(t *testing.T) {
	clock := testutil.NewMockTime(testEpoch)
	m := newTestHMAC(t, clock)

	signed, err := m.CreateJWTTokenWithTTL("alice", []string{"read"}, time.Minute)
	if err != nil {
		t.Fatalf("CreateJWTTokenWithTTL() error = %v", err)
	}

	clock.Advance(59 * time.Second)
	if _, err := m.ValidateJWTToken(signed); err != nil {
		t.Fatalf("token should be valid before expiry: %v", err)
	}

	// now == exp is already expired
	clock.Advance(time.Second)
	_, err = m.ValidateJWTToken(signed)
	assertReason(t, err, ReasonExpired)
	if !errors.Is(err, ErrExpired) {
		t.Errorf("errors.Is(err, ErrExpired) = false for %v", err)
	}
}

func TestExpiry_ZeroTTL(t *testing.T) {
	clock := testutil.NewMockTime(testEpoch)
	m := newTestHMAC(t, clock)

	signed, err := m.CreateJWTTokenWithTTL("alice", nil, 0)
	if err != nil {
		t.Fatalf("CreateJWTTokenWithTTL(0) error = %v", err)
	}
	_, err = m.ValidateJWTToken(signed)
	assertReason(t, err, ReasonExpired)
}

func TestTamper(t *testing.T) {
	for _, tc := range []struct {
		name string
		m    *Manager
	}{
		{name: "HS256", m: newTestHMAC(t, nil)},
		{name: "RS256", m: newTestRSA(t, nil)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			signed, err := tc.m.CreateJWTToken("alice", []string{"read:docs"})
			if err != nil {
				t.Fatalf("CreateJWTToken() error = %v", err)
			}
			parts := strings.Split(signed, ".")

			for _, seg := range []int{1, 2} {
				for pos := 0; pos < len(parts[seg]); pos++ {
					tampered := testutil.FlipByte(signed, seg, pos)
					if tampered == signed {
						t.Fatalf("FlipByte(%d, %d) did not change the token", seg, pos)
					}
					claims, err := tc.m.ValidateJWTToken(tampered)
					if claims != nil {
						t.Fatalf("segment %d pos %d: tampered token returned claims", seg, pos)
					}
					assertReason(t, err, ReasonSignatureInvalid)
				}
			}
		})
	}
}

func TestWrongKey(t *testing.T) {
	m := newTestHMAC(t, nil)
	other, err := NewHMAC([]byte("ffffffffffffffffffffffffffffffff"), testConfig(nil))
	if err != nil {
		t.Fatalf("NewHMAC() error = %v", err)
	}

	signed, err := other.CreateJWTToken("alice", nil)
	if err != nil {
		t.Fatalf("CreateJWTToken() error = %v", err)
	}
	_, err = m.ValidateJWTToken(signed)
	assertReason(t, err, ReasonSignatureInvalid)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("errors.Is(err, ErrSignatureInvalid) = false")
	}
}

func TestIssuerAndAudienceMismatch(t *testing.T) {
	m := newTestHMAC(t, nil)

	otherIssuer, err := NewHMAC(testutil.TestHMACSecret, Config{Issuer: "https://evil.example.com", Audience: testAudience})
	if err != nil {
		t.Fatalf("NewHMAC() error = %v", err)
	}
	otherAudience, err := NewHMAC(testutil.TestHMACSecret, Config{Issuer: testIssuer, Audience: "https://other-api.example.com"})
	if err != nil {
		t.Fatalf("NewHMAC() error = %v", err)
	}

	signed, err := otherIssuer.CreateJWTToken("alice", nil)
	if err != nil {
		t.Fatalf("CreateJWTToken() error = %v", err)
	}
	_, err = m.ValidateJWTToken(signed)
	assertReason(t, err, ReasonIssuerMismatch)

	signed, err = otherAudience.CreateJWTToken("alice", nil)
	if err != nil {
		t.Fatalf("CreateJWTToken() error = %v", err)
	}
	_, err = m.ValidateJWTToken(signed)
	assertReason(t, err, ReasonAudienceMismatch)
}

func TestMalformed(t *testing.T) {
	m := newTestHMAC(t, nil)
	validHeader := encodeSegment(t, map[string]string{"alg": "HS256", "typ": "JWT"})

	tests := []struct {
		name  string
		token string
		want  Reason
	}{
		{name: "empty", token: "", want: ReasonMalformed},
		{name: "one segment", token: "abc", want: ReasonMalformed},
		{name: "two segments", token: "abc.def", want: ReasonMalformed},
		{name: "four segments", token: "a.b.c.d", want: ReasonMalformed},
		{name: "empty payload", token: validHeader + "..sig", want: ReasonMalformed},
		{name: "empty signature", token: validHeader + ".e30.", want: ReasonMalformed},
		{name: "header not base64", token: "!!!.e30.c2ln", want: ReasonMalformed},
		{name: "header not json", token: base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".e30.c2ln", want: ReasonMalformed},
		{name: "padded header", token: base64.URLEncoding.EncodeToString([]byte(`{"alg":"HS2"}`)) + ".e30.c2ln", want: ReasonMalformed},
		{name: "signature not base64", token: validHeader + ".e30.***", want: ReasonSignatureInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := m.ValidateJWTToken(tt.token)
			if claims != nil {
				t.Fatal("malformed token returned claims")
			}
			assertReason(t, err, tt.want)
		})
	}
}

func TestMalformedPayloadWithValidSignature(t *testing.T) {
	m := newTestHMAC(t, nil)

	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: base64.RawURLEncoding.EncodeToString([]byte("garbage"))},
		{name: "missing exp", payload: encodeSegment(t, map[string]any{"sub": "alice", "iss": testIssuer, "aud": testAudience})},
		{name: "missing sub", payload: encodeSegment(t, map[string]any{"iss": testIssuer, "aud": testAudience, "exp": time.Now().Add(time.Hour).Unix()})},
		{name: "exp not a number", payload: encodeSegment(t, map[string]any{"sub": "alice", "iss": testIssuer, "aud": testAudience, "exp": "tomorrow"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := encodeSegment(t, map[string]string{"alg": "HS256", "typ": "JWT"})
			signingInput := header + "." + tt.payload
			sig, err := m.method.Sign(signingInput, m.signKey)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			tok := signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)

			_, err = m.ValidateJWTToken(tok)
			assertReason(t, err, ReasonMalformed)
		})
	}
}

func TestAlgorithmNotAllowed(t *testing.T) {
	hmac := newTestHMAC(t, nil)
	rsa := newTestRSA(t, nil)

	payload := encodeSegment(t, map[string]any{
		"sub": "alice", "iss": testIssuer, "aud": testAudience,
		"scopes": []string{"admin"}, "exp": time.Now().Add(time.Hour).Unix(),
	})

	t.Run("alg none", func(t *testing.T) {
		header := encodeSegment(t, map[string]string{"alg": "none", "typ": "JWT"})
		_, err := hmac.ValidateJWTToken(header + "." + payload + ".c2ln")
		assertReason(t, err, ReasonAlgorithmNotAllowed)
		if !errors.Is(err, ErrAlgorithmNotAllowed) {
			t.Errorf("errors.Is(err, ErrAlgorithmNotAllowed) = false")
		}
	})

	t.Run("alg missing", func(t *testing.T) {
		header := encodeSegment(t, map[string]string{"typ": "JWT"})
		_, err := hmac.ValidateJWTToken(header + "." + payload + ".c2ln")
		assertReason(t, err, ReasonAlgorithmNotAllowed)
	})

	t.Run("HS256 token to RS256 manager", func(t *testing.T) {
		signed, err := hmac.CreateJWTToken("alice", nil)
		if err != nil {
			t.Fatalf("CreateJWTToken() error = %v", err)
		}
		_, err = rsa.ValidateJWTToken(signed)
		assertReason(t, err, ReasonAlgorithmNotAllowed)
	})

	t.Run("RS256 token to HS256 manager", func(t *testing.T) {
		signed, err := rsa.CreateJWTToken("alice", nil)
		if err != nil {
			t.Fatalf("CreateJWTToken() error = %v", err)
		}
		_, err = hmac.ValidateJWTToken(signed)
		assertReason(t, err, ReasonAlgorithmNotAllowed)
	})
}

func TestNewRSA_KeyFormats(t *testing.T) {
	tests := []struct {
		name    string
		pem     []byte
		wantErr bool
	}{
		{name: "PKCS1", pem: testutil.RSAPrivateKeyPKCS1PEM(t)},
		{name: "PKCS8", pem: testutil.RSAPrivateKeyPKCS8PEM(t)},
		{name: "public key", pem: testutil.RSAPublicKeyPEM(t), wantErr: true},
		{name: "not PEM", pem: []byte("definitely not a key"), wantErr: true},
		{name: "empty", pem: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewRSA(tt.pem, testConfig(nil))
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewRSA() expected error")
				}
				if !errors.Is(err, ErrSigning) || !errors.Is(err, ErrInvalidKey) {
					t.Errorf("NewRSA() error = %v, want ErrSigning wrapping ErrInvalidKey", err)
				}
				var serr *SigningError
				if !errors.As(err, &serr) {
					t.Errorf("NewRSA() error type = %T, want *SigningError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRSA() error = %v", err)
			}
			if m.Algorithm() != AlgorithmRS256 {
				t.Errorf("Algorithm() = %q, want RS256", m.Algorithm())
			}
			if m.KeyID() == "" {
				t.Error("KeyID() should default to the key thumbprint")
			}
		})
	}
}

func TestRSAVerifier(t *testing.T) {
	signer := newTestRSA(t, nil)
	verifier, err := NewRSAVerifier(testutil.RSAPublicKeyPEM(t), testConfig(nil))
	if err != nil {
		t.Fatalf("NewRSAVerifier() error = %v", err)
	}

	if verifier.CanSign() {
		t.Error("verifier should not be able to sign")
	}
	if verifier.KeyID() != signer.KeyID() {
		t.Errorf("verifier KeyID = %q, signer KeyID = %q", verifier.KeyID(), signer.KeyID())
	}

	signed, err := signer.CreateJWTToken("alice", []string{"read"})
	if err != nil {
		t.Fatalf("CreateJWTToken() error = %v", err)
	}
	claims, err := verifier.ValidateJWTToken(signed)
	if err != nil {
		t.Fatalf("verifier ValidateJWTToken() error = %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %q, want alice", claims.Subject)
	}

	_, err = verifier.CreateJWTToken("alice", nil)
	if !errors.Is(err, ErrNoSigningKey) || !errors.Is(err, ErrSigning) {
		t.Errorf("verifier CreateJWTToken() error = %v, want ErrNoSigningKey", err)
	}
}

func TestJWKS(t *testing.T) {
	signer := newTestRSA(t, nil)

	set := signer.JWKS()
	if len(set.Keys) != 1 {
		t.Fatalf("JWKS has %d keys, want 1", len(set.Keys))
	}
	key := set.Keys[0]
	if key.KeyID != signer.KeyID() || key.Algorithm != AlgorithmRS256 || key.Use != "sig" {
		t.Errorf("unexpected JWK: kid=%q alg=%q use=%q", key.KeyID, key.Algorithm, key.Use)
	}
	if !key.IsPublic() {
		t.Error("JWKS must only contain public keys")
	}

	data, err := signer.MarshalJWKS()
	if err != nil {
		t.Fatalf("MarshalJWKS() error = %v", err)
	}
	if strings.Contains(string(data), `"d"`) {
		t.Error("marshaled JWKS leaks private exponent")
	}

	verifier, err := NewRSAVerifierFromJWKS(data, signer.KeyID(), testConfig(nil))
	if err != nil {
		t.Fatalf("NewRSAVerifierFromJWKS() error = %v", err)
	}
	signed, err := signer.CreateJWTToken("alice", nil)
	if err != nil {
		t.Fatalf("CreateJWTToken() error = %v", err)
	}
	if _, err := verifier.ValidateJWTToken(signed); err != nil {
		t.Errorf("JWKS verifier ValidateJWTToken() error = %v", err)
	}

	if _, err := NewRSAVerifierFromJWKS(data, "unknown-kid", testConfig(nil)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("unknown kid: error = %v, want ErrInvalidKey", err)
	}
	if _, err := NewRSAVerifierFromJWKS([]byte("{"), "", testConfig(nil)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("bad JSON: error = %v, want ErrInvalidKey", err)
	}
}

func TestJWKS_HMACIsEmpty(t *testing.T) {
	m := newTestHMAC(t, nil)
	if keys := m.JWKS().Keys; len(keys) != 0 {
		t.Errorf("HMAC JWKS has %d keys, want 0", len(keys))
	}
}

func TestKeyIDHeader(t *testing.T) {
	cfg := testConfig(nil)
	cfg.KeyID = "key-2026"
	m, err := NewHMAC(testutil.TestHMACSecret, cfg)
	if err != nil {
		t.Fatalf("NewHMAC() error = %v", err)
	}
	signed, err := m.CreateJWTToken("alice", nil)
	if err != nil {
		t.Fatalf("CreateJWTToken() error = %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.Split(signed, ".")[0])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if h.Kid != "key-2026" || h.Alg != AlgorithmHS256 || h.Typ != "JWT" {
		t.Errorf("header = %+v", h)
	}
}

func TestPeekClaims(t *testing.T) {
	m := newTestHMAC(t, nil)
	signed, err := m.CreateJWTToken("alice", []string{"read"})
	if err != nil {
		t.Fatalf("CreateJWTToken() error = %v", err)
	}

	claims, err := PeekClaims(testutil.FlipByte(signed, 2, 0))
	if err != nil {
		t.Fatalf("PeekClaims() error = %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %q, want alice", claims.Subject)
	}

	if _, err := PeekClaims("nope"); ReasonOf(err) != ReasonMalformed {
		t.Errorf("PeekClaims(nope) error = %v", err)
	}
}

func TestValidationError(t *testing.T) {
	cause := errors.New("boom")
	err := error(newValidationError(ReasonExpired, cause))

	if !errors.Is(err, ErrExpired) {
		t.Error("expected errors.Is(err, ErrExpired)")
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("expired error must not match ErrMalformed")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be unwrappable")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("Error() = %q, should mention the reason", err.Error())
	}
	if ReasonOf(errors.New("other")) != "" {
		t.Error("ReasonOf(non-validation error) should be empty")
	}
}

func TestConcurrentUse(t *testing.T) {
	m := newTestHMAC(t, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			signed, err := m.CreateJWTToken("alice", []string{"read"})
			if err != nil {
				errs <- err
				return
			}
			if _, err := m.ValidateJWTToken(signed); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent create/validate failed: %v", err)
	}
}
