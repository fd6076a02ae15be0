package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/auth/token"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

// DefaultTokenCookie is the cookie the server-rendered pages read the access
// token from. Browsers do not attach an Authorization header to navigations.
const DefaultTokenCookie = "portal_access_token"

// ProfileResolver maps a verified identity to the viewer's profile.
type ProfileResolver interface {
	Resolve(ctx context.Context, id *user.Identity) (*user.Profile, error)
}

type AuthConfig struct {
	// TokenCookie overrides DefaultTokenCookie. "-" disables cookie lookup.
	TokenCookie string
}

// AuthMiddleware verifies bearer tokens and places the identity and profile
// on the request context.
type AuthMiddleware struct {
	verifier token.Verifier
	profiles ProfileResolver
	cookie   string
	logger   logging.Logger
}

// NewAuthMiddleware builds the middleware. A nil verifier means auth is
// disabled and every request is anonymous.
func NewAuthMiddleware(verifier token.Verifier, profiles ProfileResolver, cfg AuthConfig, logger logging.Logger) *AuthMiddleware {
	cookie := cfg.TokenCookie
	if cookie == "" {
		cookie = DefaultTokenCookie
	}
	return &AuthMiddleware{
		verifier: verifier,
		profiles: profiles,
		cookie:   cookie,
		logger:   logger.Named("auth"),
	}
}

// rawToken finds the token in the Authorization header, falling back to the
// token cookie.
func (m *AuthMiddleware) rawToken(r *http.Request) (string, error) {
	tok, ok, err := token.BearerToken(r)
	if ok {
		return tok, err
	}
	if m.cookie == "-" {
		return "", nil
	}
	if c, err := r.Cookie(m.cookie); err == nil {
		return strings.TrimSpace(c.Value), nil
	}
	return "", nil
}

// authenticate returns the request context carrying identity and profile. A
// request without a token yields the unchanged context and a nil error.
func (m *AuthMiddleware) authenticate(r *http.Request) (context.Context, error) {
	ctx := r.Context()
	if m.verifier == nil {
		return ctx, nil
	}
	raw, err := m.rawToken(r)
	if err != nil {
		return ctx, err
	}
	if raw == "" {
		return ctx, nil
	}
	id, err := m.verifier.Verify(ctx, raw)
	if err != nil {
		return ctx, err
	}
	ctx = user.WithIdentity(ctx, id)
	if m.profiles != nil {
		p, err := m.profiles.Resolve(ctx, id)
		if err != nil {
			return r.Context(), err
		}
		ctx = user.WithProfile(ctx, p)
	}
	return ctx, nil
}

// Optional authenticates when a token is present. Invalid tokens and profile
// failures degrade to an anonymous request.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticate(r)
		if err != nil {
			m.logger.Warn("Continuing anonymously after authentication failure",
				logging.String("path", r.URL.Path), logging.Err(err))
			next.ServeHTTP(w, r)
			return
		}
		r = r.WithContext(ctx)
		recordSubject(r)
		next.ServeHTTP(w, r)
	})
}

// Required rejects requests without a valid token.
func (m *AuthMiddleware) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticate(r)
		if err != nil {
			if !errors.IsClientError(errors.GetCode(err)) {
				m.logger.Error("Authentication failed", logging.String("path", r.URL.Path), logging.Err(err))
			}
			writeError(w, err)
			return
		}
		if user.IdentityFromContext(ctx) == nil {
			writeError(w, token.ErrTokenMissing)
			return
		}
		r = r.WithContext(ctx)
		recordSubject(r)
		next.ServeHTTP(w, r)
	})
}

// RequireCapability lets the request through only when allow accepts the
// viewer's capabilities.
func RequireCapability(allow func(user.Capabilities) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caps := user.ProfileFromContext(r.Context()).Capabilities()
			if !allow(caps) {
				writeError(w, errors.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsAdmin is a RequireCapability predicate.
func IsAdmin(c user.Capabilities) bool { return c.IsAdmin }

// errorBody mirrors the handlers' error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)
	msg := errors.DefaultMessageForCode(code)
	var ae *errors.AppError
	if status < http.StatusInternalServerError && errors.As(err, &ae) {
		msg = ae.Message
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="portal"`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code.String(), Message: msg})
}
