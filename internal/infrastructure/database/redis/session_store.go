package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

// SessionStore keeps portal session entries in Redis:
//
//	<prefix>session:<session id>          JSON entry, expires after ttl
//	<prefix>user_sessions:<user hash>     sorted set of session ids scored by start time
//	<prefix>sessions                      every live session id scored by start time
//	<prefix>next_sessions                 the live sessions currently on Network Next
//
// A user index is capped at maxPerUser members and its expiry is refreshed
// on every write, so it lives as long as the user's newest session. The two
// global sets drop members that started more than ttl ago and are capped at
// maxLive members.
type SessionStore struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	ttl        time.Duration
	maxPerUser int64
	maxLive    int64
	now        func() time.Time
}

type SessionStoreOption func(*SessionStore)

func WithSessionPrefix(prefix string) SessionStoreOption {
	return func(s *SessionStore) { s.prefix = prefix }
}

func WithSessionTTL(ttl time.Duration) SessionStoreOption {
	return func(s *SessionStore) { s.ttl = ttl }
}

func WithMaxSessionsPerUser(n int) SessionStoreOption {
	return func(s *SessionStore) { s.maxPerUser = int64(n) }
}

func WithMaxLiveSessions(n int) SessionStoreOption {
	return func(s *SessionStore) { s.maxLive = int64(n) }
}

func NewSessionStore(client *Client, log logging.Logger, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		client:     client,
		logger:     log,
		prefix:     "portal:",
		ttl:        24 * time.Hour,
		maxPerUser: 1000,
		maxLive:    100000,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ session.Repository         = (*SessionStore)(nil)
	_ session.ActivityRepository = (*SessionStore)(nil)
)

func (s *SessionStore) entryKey(id session.ID) string {
	return s.prefix + "session:" + id.String()
}

func (s *SessionStore) userKey(userHash session.ID) string {
	return s.prefix + "user_sessions:" + userHash.String()
}

func (s *SessionStore) liveKey() string { return s.prefix + "sessions" }

func (s *SessionStore) nextKey() string { return s.prefix + "next_sessions" }

// liveCutoff is the lowest start-time score a live session can have.
func (s *SessionStore) liveCutoff() string {
	return strconv.FormatInt(s.now().Add(-s.ttl).Unix(), 10)
}

// Record stores e and indexes it under its user hash in one transaction.
func (s *SessionStore) Record(ctx context.Context, e session.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.LastUpdate.IsZero() {
		e.LastUpdate = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}

	userKey := s.userKey(e.UserHash)
	member := redis.Z{Score: float64(e.StartTime.Unix()), Member: e.SessionID.String()}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.entryKey(e.SessionID), data, s.ttl)
	pipe.ZAdd(ctx, userKey, member)
	pipe.ZRemRangeByRank(ctx, userKey, 0, -(s.maxPerUser + 1))
	pipe.Expire(ctx, userKey, s.ttl)

	pipe.ZAdd(ctx, s.liveKey(), member)
	if e.Next {
		pipe.ZAdd(ctx, s.nextKey(), member)
	} else {
		pipe.ZRem(ctx, s.nextKey(), member.Member)
	}
	cutoff := s.liveCutoff()
	for _, key := range []string{s.liveKey(), s.nextKey()} {
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff)
		pipe.ZRemRangeByRank(ctx, key, 0, -(s.maxLive + 1))
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to record session").
			WithDetail("session_id=" + e.SessionID.String())
	}
	return nil
}

// ListByUser returns up to limit entries for userHash, newest first. Index
// members whose entry has expired are dropped from the index.
func (s *SessionStore) ListByUser(ctx context.Context, userHash session.ID, limit int) ([]session.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	userKey := s.userKey(userHash)
	ids, err := s.client.ZRevRange(ctx, userKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to read user session index").
			WithDetail("user_hash=" + userHash.String())
	}
	if len(ids) == 0 {
		return nil, nil
	}

	loaded, stale, err := s.loadEntries(ctx, ids)
	if err != nil {
		return nil, err
	}
	entries := loaded[:0]
	for _, e := range loaded {
		// An entry re-recorded under a different user no longer belongs here.
		if e.UserHash != userHash {
			stale = append(stale, e.SessionID.String())
			continue
		}
		entries = append(entries, e)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, userKey, members(stale)...).Err(); err != nil {
			s.logger.Warn("Failed to prune user session index", logging.Hex("user_hash", uint64(userHash)), logging.Err(err))
		}
	}
	session.SortByStartDesc(entries)
	return entries, nil
}

// loadEntries reads the entries behind the index members ids, keeping their
// order. Members whose entry expired or cannot be decoded are returned in
// stale.
func (s *SessionStore) loadEntries(ctx context.Context, ids []string) ([]session.Entry, []string, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + "session:" + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to read session entries")
	}

	entries := make([]session.Entry, 0, len(vals))
	var stale []string
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var e session.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			s.logger.Warn("Dropping undecodable session entry", logging.String("key", keys[i]), logging.Err(err))
			stale = append(stale, ids[i])
			continue
		}
		entries = append(entries, e)
	}
	return entries, stale, nil
}

func members(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// Counts returns how many sessions started within the last ttl, and how many
// of those were on Network Next at their latest update.
func (s *SessionStore) Counts(ctx context.Context) (session.Counts, error) {
	cutoff := s.liveCutoff()
	pipe := s.client.TxPipeline()
	total := pipe.ZCount(ctx, s.liveKey(), cutoff, "+inf")
	next := pipe.ZCount(ctx, s.nextKey(), cutoff, "+inf")
	if _, err := pipe.Exec(ctx); err != nil {
		return session.Counts{}, errors.Wrap(err, errors.ErrCodeCacheError, "failed to count sessions")
	}
	return session.Counts{Total: total.Val(), Next: next.Val()}, nil
}

// ListRecent returns the live sessions ranked begin to end-1 by start time,
// newest first. Members whose entry has expired are dropped from the global
// sets, so a page can come back short.
func (s *SessionStore) ListRecent(ctx context.Context, begin, end int) ([]session.Entry, error) {
	if begin < 0 || end <= begin {
		return nil, nil
	}
	ids, err := s.client.ZRevRange(ctx, s.liveKey(), int64(begin), int64(end)-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to read session index")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	entries, stale, err := s.loadEntries(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		pipe := s.client.TxPipeline()
		pipe.ZRem(ctx, s.liveKey(), members(stale)...)
		pipe.ZRem(ctx, s.nextKey(), members(stale)...)
		if _, err := pipe.Exec(ctx); err != nil {
			s.logger.Warn("Failed to prune session index", logging.Int("stale", len(stale)), logging.Err(err))
		}
	}
	return entries, nil
}

// Get returns the entry for sessionID.
func (s *SessionStore) Get(ctx context.Context, sessionID session.ID) (*session.Entry, error) {
	data, err := s.client.Get(ctx, s.entryKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session not found").
			WithDetail("session_id=" + sessionID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to read session").
			WithDetail("session_id=" + sessionID.String())
	}
	var e session.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, ErrSerializationFailed.WithCause(err)
	}
	return &e, nil
}
