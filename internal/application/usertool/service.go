// Package usertool implements the User Tool: looking up the sessions that
// belong to a user id, scoped to what the viewer is allowed to see.
package usertool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

// ViewState is the state the User Tool workspace renders.
type ViewState string

const (
	StateNoInput    ViewState = "no_input"
	StateSessions   ViewState = "sessions"
	StateNoSessions ViewState = "no_sessions"
	StateError      ViewState = "error"
)

// Lookup outcomes reported to the observer.
const (
	OutcomeNoInput   = "no_input"
	OutcomeFound     = "found"
	OutcomeEmpty     = "empty"
	OutcomeForbidden = "forbidden"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

const (
	DefaultMaxSessions     = 100
	DefaultScanLimit       = 1000
	DefaultCacheTTL        = 10 * time.Second
	DefaultMaxUserIDLength = 256

	cacheKeyPrefix = "lookup:"
)

// Service defines the User Tool operations.
type Service interface {
	// Lookup returns the sessions of rawUserID visible to viewer. On failure
	// the returned Result is still usable for rendering, with State error.
	Lookup(ctx context.Context, viewer *user.Profile, rawUserID string) (*Result, error)
	// GetSession returns one session if viewer may see it.
	GetSession(ctx context.Context, viewer *user.Profile, rawSessionID string) (*session.Entry, error)
}

// Result is the outcome of a lookup.
type Result struct {
	UserID   string          `json:"user_id"`
	State    ViewState       `json:"state"`
	Sessions []session.Entry `json:"sessions"`
}

// Config holds the lookup limits. ScanLimit is how many entries of each
// user index a company-scoped lookup reads before filtering by buyer; it
// should match the store's per-user cap.
type Config struct {
	MaxSessions     int
	ScanLimit       int
	CacheTTL        time.Duration
	MaxUserIDLength int
}

func (c *Config) applyDefaults() {
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.ScanLimit < c.MaxSessions {
		c.ScanLimit = DefaultScanLimit
		if c.ScanLimit < c.MaxSessions {
			c.ScanLimit = c.MaxSessions
		}
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.MaxUserIDLength <= 0 {
		c.MaxUserIDLength = DefaultMaxUserIDLength
	}
}

// Cache is the subset of the Redis cache the service needs.
type Cache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

// LookupObserver receives one notification per lookup.
type LookupObserver interface {
	RecordSessionLookup(outcome string, results int, duration time.Duration)
}

type Option func(*serviceImpl)

func WithObserver(o LookupObserver) Option {
	return func(s *serviceImpl) { s.observer = o }
}

type serviceImpl struct {
	repo     session.Repository
	cache    Cache
	cfg      Config
	observer LookupObserver
	logger   logging.Logger
}

// NewService creates the User Tool service. cache may be nil.
func NewService(repo session.Repository, cache Cache, cfg Config, logger logging.Logger, opts ...Option) Service {
	cfg.applyDefaults()
	s := &serviceImpl{
		repo:   repo,
		cache:  cache,
		cfg:    cfg,
		logger: logger.Named("usertool"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) Lookup(ctx context.Context, viewer *user.Profile, rawUserID string) (*Result, error) {
	start := time.Now()
	userID := strings.TrimSpace(rawUserID)
	res := &Result{UserID: userID, Sessions: []session.Entry{}}

	if userID == "" {
		res.State = StateNoInput
		s.observe(OutcomeNoInput, 0, start)
		return res, nil
	}
	if len(userID) > s.cfg.MaxUserIDLength {
		res.State = StateError
		s.observe(OutcomeInvalid, 0, start)
		return res, errors.New(errors.ErrCodeUserIDInvalid, fmt.Sprintf("user id must be at most %d characters", s.cfg.MaxUserIDLength))
	}

	caps := viewer.Capabilities()
	if !caps.CanUseUserTool() {
		res.State = StateError
		s.observe(OutcomeForbidden, 0, start)
		return res, errors.Forbidden("viewer may not look up user sessions")
	}

	candidates := session.UserHashCandidates(userID)
	company := ""
	if !caps.IsAdmin {
		company = viewer.CompanyCode
	}

	entries, err := s.cachedQuery(ctx, candidates, company)
	if err != nil {
		res.State = StateError
		s.observe(OutcomeError, 0, start)
		s.logger.Warn("User session lookup failed",
			logging.String("user_id", userID), logging.Err(err))
		return res, err
	}

	res.Sessions = entries
	if len(entries) == 0 {
		res.State = StateNoSessions
		s.observe(OutcomeEmpty, 0, start)
		return res, nil
	}
	res.State = StateSessions
	s.observe(OutcomeFound, len(entries), start)
	return res, nil
}

// cacheKey scopes the cached result to the viewer's company so an admin's
// unfiltered list is never served to a company user.
func cacheKey(company string, candidates []session.ID) string {
	var sb strings.Builder
	sb.WriteString(cacheKeyPrefix)
	if company == "" {
		sb.WriteString("all")
	} else {
		sb.WriteString("company=")
		sb.WriteString(company)
	}
	for _, c := range candidates {
		sb.WriteByte(':')
		sb.WriteString(c.String())
	}
	return sb.String()
}

func (s *serviceImpl) cachedQuery(ctx context.Context, candidates []session.ID, company string) ([]session.Entry, error) {
	if s.cache == nil {
		return s.query(ctx, candidates, company)
	}
	var entries []session.Entry
	err := s.cache.GetOrSet(ctx, cacheKey(company, candidates), &entries, s.cfg.CacheTTL, func(ctx context.Context) (interface{}, error) {
		return s.query(ctx, candidates, company)
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []session.Entry{}
	}
	return entries, nil
}

// query reads every candidate's index concurrently. A non-empty company
// restricts the result to that buyer's sessions; the buyer filter runs
// before truncation, so those lookups read up to ScanLimit entries.
func (s *serviceImpl) query(ctx context.Context, candidates []session.ID, company string) ([]session.Entry, error) {
	limit := s.cfg.MaxSessions
	if company != "" {
		limit = s.cfg.ScanLimit
	}
	lists := make([][]session.Entry, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			entries, err := s.repo.ListByUser(gctx, c, limit)
			if err != nil {
				return err
			}
			if company != "" {
				entries = filterBuyer(entries, company)
			}
			lists[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return session.Merge(s.cfg.MaxSessions, lists...), nil
}

func filterBuyer(entries []session.Entry, company string) []session.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if strings.EqualFold(e.BuyerCode, company) {
			out = append(out, e)
		}
	}
	return out
}

func (s *serviceImpl) GetSession(ctx context.Context, viewer *user.Profile, rawSessionID string) (*session.Entry, error) {
	caps := viewer.Capabilities()
	if !caps.CanUseUserTool() {
		return nil, errors.Forbidden("viewer may not view sessions")
	}
	id, err := session.ParseSessionID(rawSessionID)
	if err != nil {
		return nil, err
	}
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caps.IsAdmin && !strings.EqualFold(e.BuyerCode, viewer.CompanyCode) {
		return nil, errors.New(errors.ErrCodeSessionForeignBuyer, "session belongs to another company").
			WithDetail("session_id=" + id.String())
	}
	return e, nil
}

func (s *serviceImpl) observe(outcome string, results int, start time.Time) {
	if s.observer != nil {
		s.observer.RecordSessionLookup(outcome, results, time.Since(start))
	}
}
