// Package overview reports portal-wide session activity: how many sessions
// are live, how many Network Next is accelerating, and the most recent ones.
package overview

import (
	"context"
	"fmt"
	"time"

	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

const (
	DefaultMaxPage  = 100
	DefaultCacheTTL = 10 * time.Second

	countsCacheKey = "overview:counts"
)

// Service defines the overview operations.
type Service interface {
	// Counts is open to every viewer who may use the User Tool. The numbers
	// span all buyers.
	Counts(ctx context.Context, viewer *user.Profile) (*session.Counts, error)
	// Recent returns the sessions ranked begin to end-1, newest first. It is
	// restricted to admins.
	Recent(ctx context.Context, viewer *user.Profile, begin, end int) (*RecentPage, error)
}

// RecentPage is one page of recent sessions.
type RecentPage struct {
	Begin    int             `json:"begin"`
	End      int             `json:"end"`
	Sessions []session.Entry `json:"sessions"`
}

// Config holds the overview limits.
type Config struct {
	MaxPage  int
	CacheTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxPage <= 0 {
		c.MaxPage = DefaultMaxPage
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
}

// Cache is the subset of the Redis cache the service needs.
type Cache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

type serviceImpl struct {
	repo   session.ActivityRepository
	cache  Cache
	cfg    Config
	logger logging.Logger
}

// NewService creates the overview service. cache may be nil.
func NewService(repo session.ActivityRepository, cache Cache, cfg Config, logger logging.Logger) Service {
	cfg.applyDefaults()
	return &serviceImpl{repo: repo, cache: cache, cfg: cfg, logger: logger.Named("overview")}
}

func (s *serviceImpl) Counts(ctx context.Context, viewer *user.Profile) (*session.Counts, error) {
	if !viewer.Capabilities().CanUseUserTool() {
		return nil, errors.Forbidden("viewer may not see session counts")
	}
	if s.cache == nil {
		return s.load(ctx)
	}
	var counts session.Counts
	err := s.cache.GetOrSet(ctx, countsCacheKey, &counts, s.cfg.CacheTTL, func(ctx context.Context) (interface{}, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &counts, nil
}

func (s *serviceImpl) load(ctx context.Context) (*session.Counts, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		s.logger.Warn("Session count failed", logging.Err(err))
		return nil, err
	}
	return &counts, nil
}

func (s *serviceImpl) Recent(ctx context.Context, viewer *user.Profile, begin, end int) (*RecentPage, error) {
	if !viewer.Capabilities().IsAdmin {
		return nil, errors.Forbidden("only admins may list recent sessions")
	}
	if begin < 0 || end < begin {
		return nil, errors.InvalidParam(fmt.Sprintf("session range [%d, %d) is invalid", begin, end))
	}
	if end-begin > s.cfg.MaxPage {
		end = begin + s.cfg.MaxPage
	}

	entries, err := s.repo.ListRecent(ctx, begin, end)
	if err != nil {
		s.logger.Warn("Recent session listing failed",
			logging.Int("begin", begin), logging.Int("end", end), logging.Err(err))
		return nil, err
	}
	if entries == nil {
		entries = []session.Entry{}
	}
	return &RecentPage{Begin: begin, End: end, Sessions: entries}, nil
}
