// Package profile resolves the viewer's stored profile from a verified
// identity and exposes the admin operations on profiles.
package profile

import (
	"context"
	"strings"
	"time"

	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

const (
	cacheKeyPrefix  = "profile:"
	defaultCacheTTL = 5 * time.Minute
)

// Service defines the profile application operations.
type Service interface {
	// Resolve returns the profile for id, creating it on first login. A nil
	// identity resolves to a nil (anonymous) profile.
	Resolve(ctx context.Context, id *user.Identity) (*user.Profile, error)
	SetCompany(ctx context.Context, subject, code, name string) (*user.Profile, error)
	List(ctx context.Context, filter user.ListFilter) (*ListResult, error)
}

// Cache is the subset of the Redis cache the service needs.
type Cache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	Delete(ctx context.Context, keys ...string) error
}

// ListResult is one page of profiles.
type ListResult struct {
	Profiles []*user.Profile `json:"profiles"`
	Total    int64           `json:"total"`
	Offset   int             `json:"offset"`
	Limit    int             `json:"limit"`
}

type serviceImpl struct {
	repo   user.Repository
	cache  Cache
	ttl    time.Duration
	logger logging.Logger
}

// NewService creates the profile service. cache may be nil, in which case
// every Resolve reads Postgres.
func NewService(repo user.Repository, cache Cache, ttl time.Duration, logger logging.Logger) Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &serviceImpl{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Named("profile"),
	}
}

func cacheKey(subject string) string {
	return cacheKeyPrefix + subject
}

func (s *serviceImpl) Resolve(ctx context.Context, id *user.Identity) (*user.Profile, error) {
	if id == nil || strings.TrimSpace(id.Subject) == "" {
		return nil, nil
	}

	p, err := s.cachedLoad(ctx, id)
	if err != nil {
		return nil, err
	}

	if reconcile(p, id) {
		p.UpdatedAt = time.Now().UTC()
		if err := s.repo.Upsert(ctx, p); err != nil {
			return nil, err
		}
		s.invalidate(ctx, p.Subject)
		s.logger.Debug("Profile refreshed from token claims", logging.String("subject", p.Subject))
	}
	return p, nil
}

func (s *serviceImpl) cachedLoad(ctx context.Context, id *user.Identity) (*user.Profile, error) {
	if s.cache == nil {
		return s.load(ctx, id)
	}
	var p user.Profile
	err := s.cache.GetOrSet(ctx, cacheKey(id.Subject), &p, s.ttl, func(ctx context.Context) (interface{}, error) {
		loaded, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// load reads the profile from Postgres, creating it from the identity claims
// when the subject has never signed in before.
func (s *serviceImpl) load(ctx context.Context, id *user.Identity) (*user.Profile, error) {
	p, err := s.repo.GetBySubject(ctx, id.Subject)
	if err == nil {
		return p, nil
	}
	if !errors.IsCode(err, errors.ErrCodeProfileNotFound) {
		return nil, err
	}

	p, err = user.NewProfile(id.Subject, id.Email, id.EmailVerified, id.Roles)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Profile created on first login",
		logging.String("subject", p.Subject),
		logging.String("profile_id", p.ID.String()))
	return p, nil
}

// reconcile copies the token's view of the user onto p and reports whether
// anything changed.
func reconcile(p *user.Profile, id *user.Identity) bool {
	changed := false
	if p.EmailVerified != id.EmailVerified {
		p.EmailVerified = id.EmailVerified
		changed = true
	}
	if id.Email != "" && p.Email != id.Email {
		p.Email = id.Email
		changed = true
	}
	if !sameRoles(p.Roles, id.Roles) {
		p.Roles = append([]user.Role(nil), id.Roles...)
		changed = true
	}
	return changed
}

func sameRoles(a, b []user.Role) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[user.Role]struct{}, len(a))
	for _, r := range a {
		set[r] = struct{}{}
	}
	for _, r := range b {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

func (s *serviceImpl) SetCompany(ctx context.Context, subject, code, name string) (*user.Profile, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, errors.InvalidParam("subject must not be empty")
	}
	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	if err := p.SetCompany(code, name); err != nil {
		return nil, err
	}
	if err := s.repo.SetCompany(ctx, subject, p.CompanyCode, p.CompanyName); err != nil {
		return nil, err
	}
	s.invalidate(ctx, subject)
	s.logger.Info("Profile company updated",
		logging.String("subject", subject),
		logging.String("company_code", p.CompanyCode))
	return p, nil
}

func (s *serviceImpl) List(ctx context.Context, filter user.ListFilter) (*ListResult, error) {
	if filter.Offset < 0 {
		return nil, errors.InvalidParam("offset must not be negative")
	}
	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []*user.Profile{}
	}
	return &ListResult{Profiles: profiles, Total: total, Offset: filter.Offset, Limit: filter.Limit}, nil
}

func (s *serviceImpl) invalidate(ctx context.Context, subject string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(subject)); err != nil {
		s.logger.Warn("Failed to invalidate cached profile",
			logging.String("subject", subject), logging.Err(err))
	}
}
