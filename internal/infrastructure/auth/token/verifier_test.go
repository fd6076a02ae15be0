package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

const testSecret = "portal-test-secret"

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type recordingObserver struct {
	success []bool
	reasons []string
}

func (o *recordingObserver) RecordAuthAttempt(success bool, reason string) {
	o.success = append(o.success, success)
	o.reasons = append(o.reasons, reason)
}

func hmacConfig() config.AuthConfig {
	return config.AuthConfig{
		Enabled:    true,
		Issuer:     "https://auth.networknext.com/",
		Audience:   "portal",
		HMACSecret: testSecret,
		Leeway:     30 * time.Second,
		RolesClaim: "https://networknext.com/userRoles",
	}
}

func signHMAC(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":            "auth0|5b96f61cf1642721ad84eeb6",
		"iss":            "https://auth.networknext.com/",
		"aud":            "portal",
		"exp":            testNow.Add(time.Hour).Unix(),
		"iat":            testNow.Unix(),
		"email":          "dev@studio.com",
		"email_verified": true,
		"https://networknext.com/userRoles": map[string]interface{}{
			"roles": []interface{}{"Admin", "Owner", "unknown"},
		},
	}
}

func newHMACVerifier(t *testing.T, opts ...Option) *JWTVerifier {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	v, err := NewJWTVerifier(hmacConfig(), logging.NewNopLogger(), opts...)
	require.NoError(t, err)
	return v
}

func TestNewJWTVerifier_RequiresKey(t *testing.T) {
	_, err := NewJWTVerifier(config.AuthConfig{Enabled: true}, logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestVerify_ValidToken(t *testing.T) {
	obs := &recordingObserver{}
	v := newHMACVerifier(t, WithObserver(obs))

	id, err := v.Verify(context.Background(), signHMAC(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "auth0|5b96f61cf1642721ad84eeb6", id.Subject)
	assert.Equal(t, "dev@studio.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, []user.Role{user.RoleAdmin, user.RoleOwner}, id.Roles)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), id.ExpiresAt.Unix())
	assert.Equal(t, []bool{true}, obs.success)
}

func TestVerify_RolesAsArray(t *testing.T) {
	claims := validClaims()
	claims["https://networknext.com/userRoles"] = []interface{}{"explorer"}

	id, err := newHMACVerifier(t).Verify(context.Background(), signHMAC(t, claims))
	require.NoError(t, err)
	assert.Equal(t, []user.Role{user.RoleExplorer}, id.Roles)
}

func TestVerify_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		token  func(t *testing.T) string
		code   errors.ErrorCode
		reason string
	}{
		{
			name:   "empty",
			token:  func(*testing.T) string { return "" },
			code:   errors.ErrCodeTokenMissing,
			reason: "missing",
		},
		{
			name:   "garbage",
			token:  func(*testing.T) string { return "not.a.jwt" },
			code:   errors.ErrCodeTokenInvalid,
			reason: "malformed",
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				c := validClaims()
				c["exp"] = testNow.Add(-time.Minute).Unix()
				return signHMAC(t, c)
			},
			code:   errors.ErrCodeTokenExpired,
			reason: "expired",
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("other"))
				require.NoError(t, err)
				return s
			},
			code:   errors.ErrCodeTokenInvalid,
			reason: "signature",
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				c := validClaims()
				c["iss"] = "https://evil.example.com/"
				return signHMAC(t, c)
			},
			code:   errors.ErrCodeTokenInvalid,
			reason: "issuer",
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				c := validClaims()
				c["aud"] = "other"
				return signHMAC(t, c)
			},
			code:   errors.ErrCodeTokenInvalid,
			reason: "audience",
		},
		{
			name: "no subject",
			token: func(t *testing.T) string {
				c := validClaims()
				delete(c, "sub")
				return signHMAC(t, c)
			},
			code:   errors.ErrCodeTokenInvalid,
			reason: "subject",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			v := newHMACVerifier(t, WithObserver(obs))

			id, err := v.Verify(context.Background(), tt.token(t))
			assert.Nil(t, id)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
			assert.Equal(t, []string{tt.reason}, obs.reasons)
		})
	}
}

func TestVerify_LeewayAcceptsRecentExpiry(t *testing.T) {
	c := validClaims()
	c["exp"] = testNow.Add(-10 * time.Second).Unix()

	_, err := newHMACVerifier(t).Verify(context.Background(), signHMAC(t, c))
	assert.NoError(t, err)
}

func TestVerify_RSAPublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "auth.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	cfg := hmacConfig()
	cfg.HMACSecret = ""
	cfg.PublicKeyPath = path
	v, err := NewJWTVerifier(cfg, logging.NewNopLogger(), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims()).SignedString(key)
	require.NoError(t, err)
	id, err := v.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "dev@studio.com", id.Email)

	// An HMAC token must not pass an RSA verifier.
	_, err = v.Verify(context.Background(), signHMAC(t, validClaims()))
	assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
}

func TestNewJWTVerifier_MissingKeyFile(t *testing.T) {
	cfg := hmacConfig()
	cfg.HMACSecret = ""
	cfg.PublicKeyPath = filepath.Join(t.TempDir(), "missing.pem")

	_, err := NewJWTVerifier(cfg, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	tok, ok, err := BearerToken(r)
	assert.Empty(t, tok)
	assert.False(t, ok)
	assert.NoError(t, err)

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	tok, ok, err = BearerToken(r)
	assert.Equal(t, "abc.def.ghi", tok)
	assert.True(t, ok)
	assert.NoError(t, err)

	r.Header.Set("Authorization", "bearer xyz")
	tok, _, err = BearerToken(r)
	assert.Equal(t, "xyz", tok)
	assert.NoError(t, err)

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, ok, err = BearerToken(r)
	assert.True(t, ok)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
}
