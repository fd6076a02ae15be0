package user

import (
	"context"
	"time"
)

// Identity is the verified bearer of a request, as asserted by the token.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Roles         []Role
	ExpiresAt     time.Time
}

type identityKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the request identity, or nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

type profileKey struct{}

// WithProfile stores the resolved viewer profile on ctx.
func WithProfile(ctx context.Context, p *Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// ProfileFromContext returns the resolved viewer profile, or nil.
func ProfileFromContext(ctx context.Context) *Profile {
	p, _ := ctx.Value(profileKey{}).(*Profile)
	return p
}
