// Package user models portal viewers: their stored profile and the
// capabilities derived from it.
package user

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/networknext/portal/pkg/errors"
)

// Role is a portal role granted by the identity provider.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOwner    Role = "owner"
	RoleExplorer Role = "explorer"
)

// ParseRole maps a claim value to a Role. Matching is case-insensitive.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleOwner:
		return RoleOwner, true
	case RoleExplorer:
		return RoleExplorer, true
	}
	return "", false
}

// ParseRoles keeps the recognised roles of raw in order, without duplicates.
func ParseRoles(raw []string) []Role {
	out := make([]Role, 0, len(raw))
	seen := make(map[Role]struct{}, len(raw))
	for _, r := range raw {
		role, ok := ParseRole(r)
		if !ok {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

// Profile is the stored record of an authenticated portal user.
type Profile struct {
	ID            uuid.UUID `json:"id"`
	Subject       string    `json:"subject"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CompanyCode   string    `json:"company_code"`
	CompanyName   string    `json:"company"`
	Roles         []Role    `json:"roles"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewProfile builds a profile for a first login.
func NewProfile(subject, email string, emailVerified bool, roles []Role) (*Profile, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, errors.InvalidParam("profile subject must not be empty")
	}
	now := time.Now().UTC()
	return &Profile{
		ID:            uuid.New(),
		Subject:       subject,
		Email:         strings.TrimSpace(email),
		EmailVerified: emailVerified,
		Roles:         roles,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// HasRole reports whether the profile carries role.
func (p *Profile) HasRole(role Role) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SetCompany assigns the company the profile is registered to. An empty code
// unregisters the profile; a code without a name is rejected.
func (p *Profile) SetCompany(code, name string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" {
		p.CompanyCode, p.CompanyName = "", ""
		p.UpdatedAt = time.Now().UTC()
		return nil
	}
	if !validCompanyCode(code) {
		return errors.New(errors.ErrCodeCompanyInvalid, "company code must be 1-32 characters of a-z, 0-9, '-' or '_'").
			WithDetail("code=" + code)
	}
	if name == "" {
		return errors.New(errors.ErrCodeCompanyInvalid, "company name must not be empty")
	}
	p.CompanyCode, p.CompanyName = code, name
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func validCompanyCode(code string) bool {
	if len(code) == 0 || len(code) > 32 {
		return false
	}
	for _, c := range code {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
