// Package token verifies portal bearer tokens and maps their claims to a
// user.Identity.
package token

import (
	"context"
	"crypto/rsa"
	stderrors "errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

var (
	ErrTokenMissing   = errors.New(errors.ErrCodeTokenMissing, "missing bearer token")
	ErrTokenMalformed = errors.New(errors.ErrCodeTokenInvalid, "malformed bearer token")
	ErrTokenInvalid   = errors.New(errors.ErrCodeTokenInvalid, "invalid bearer token")
	ErrTokenExpired   = errors.New(errors.ErrCodeTokenExpired, "bearer token has expired")
)

// Verifier turns a raw bearer token into an identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*user.Identity, error)
}

// AttemptObserver is notified of every verification.
type AttemptObserver interface {
	RecordAuthAttempt(success bool, reason string)
}

// Option configures a JWTVerifier.
type Option func(*JWTVerifier)

// WithObserver reports verification outcomes to o.
func WithObserver(o AttemptObserver) Option {
	return func(v *JWTVerifier) { v.observer = o }
}

// WithClock overrides the time source used for exp/nbf checks.
func WithClock(now func() time.Time) Option {
	return func(v *JWTVerifier) { v.now = now }
}

// JWTVerifier validates HS256 or RS256 tokens against a single key.
type JWTVerifier struct {
	key        interface{}
	methods    []string
	issuer     string
	audience   string
	leeway     time.Duration
	rolesClaim string
	observer   AttemptObserver
	now        func() time.Time
	logger     logging.Logger
}

// NewJWTVerifier builds a verifier from cfg. An HMAC secret takes precedence
// over a public key file.
func NewJWTVerifier(cfg config.AuthConfig, logger logging.Logger, opts ...Option) (*JWTVerifier, error) {
	v := &JWTVerifier{
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		leeway:     cfg.Leeway,
		rolesClaim: cfg.RolesClaim,
		now:        time.Now,
		logger:     logger,
	}
	if v.rolesClaim == "" {
		v.rolesClaim = "roles"
	}

	switch {
	case cfg.HMACSecret != "":
		v.key = []byte(cfg.HMACSecret)
		v.methods = []string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}
	case cfg.PublicKeyPath != "":
		key, err := loadRSAPublicKey(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		v.key = key
		v.methods = []string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodRS384.Alg(), jwt.SigningMethodRS512.Alg()}
	default:
		return nil, errors.InvalidParam("auth requires an hmac secret or a public key")
	}

	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read auth public key")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to parse auth public key")
	}
	return key, nil
}

// Verify checks the signature and the registered claims, then maps the
// token to an identity.
func (v *JWTVerifier) Verify(_ context.Context, rawToken string) (*user.Identity, error) {
	id, reason, err := v.verify(rawToken)
	if v.observer != nil {
		v.observer.RecordAuthAttempt(err == nil, reason)
	}
	if err != nil {
		v.logger.Debug("bearer token rejected", logging.String("reason", reason), logging.Err(err))
		return nil, err
	}
	return id, nil
}

func (v *JWTVerifier) verify(rawToken string) (*user.Identity, string, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, "missing", ErrTokenMissing
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, parserOpts...)
	if err != nil {
		switch {
		case stderrors.Is(err, jwt.ErrTokenExpired):
			return nil, "expired", ErrTokenExpired.WithCause(err)
		case stderrors.Is(err, jwt.ErrTokenMalformed):
			return nil, "malformed", ErrTokenMalformed.WithCause(err)
		case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, "signature", ErrTokenInvalid.WithCause(err)
		case stderrors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, "issuer", ErrTokenInvalid.WithCause(err)
		case stderrors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, "audience", ErrTokenInvalid.WithCause(err)
		}
		return nil, "invalid", ErrTokenInvalid.WithCause(err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, "subject", ErrTokenInvalid.WithDetail("token has no subject")
	}

	id := &user.Identity{
		Subject: sub,
		Roles:   user.ParseRoles(v.roles(claims)),
	}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if verified, ok := claims["email_verified"].(bool); ok {
		id.EmailVerified = verified
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, "", nil
}

// roles reads the configured roles claim. Both a plain string array and an
// object holding a "roles" array are accepted.
func (v *JWTVerifier) roles(claims jwt.MapClaims) []string {
	raw, ok := claims[v.rolesClaim]
	if !ok {
		return nil
	}
	if obj, ok := raw.(map[string]interface{}); ok {
		raw = obj["roles"]
	}
	switch vals := raw.(type) {
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, r := range vals {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(strings.ReplaceAll(vals, ",", " "))
	}
	return nil
}

// BearerToken extracts the token from an Authorization header. ok is false
// when no header was sent.
func BearerToken(r *http.Request) (token string, ok bool, err error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false, nil
	}
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", true, ErrTokenMalformed.WithDetail("authorization scheme must be Bearer")
	}
	return strings.TrimSpace(header[len(prefix):]), true, nil
}
