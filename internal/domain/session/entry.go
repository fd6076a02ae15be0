package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/networknext/portal/pkg/errors"
)

// Entry is the portal's summary of one session, refreshed on every portal
// session update the backend emits.
type Entry struct {
	SessionID        ID             `json:"session_id" yaml:"session_id"`
	UserHash         ID             `json:"user_hash" yaml:"user_hash"`
	StartTime        time.Time      `json:"start_time" yaml:"start_time"`
	BuyerCode        string         `json:"buyer_code" yaml:"buyer_code"`
	Datacenter       string         `json:"datacenter" yaml:"datacenter"`
	Platform         PlatformType   `json:"platform" yaml:"platform"`
	Connection       ConnectionType `json:"connection" yaml:"connection"`
	SDKVersion       string         `json:"sdk_version" yaml:"sdk_version"`
	DirectRTT        float32        `json:"direct_rtt" yaml:"direct_rtt"`
	DirectJitter     float32        `json:"direct_jitter" yaml:"direct_jitter"`
	DirectPacketLoss float32        `json:"direct_packet_loss" yaml:"direct_packet_loss"`
	NextRTT          float32        `json:"next_rtt" yaml:"next_rtt"`
	NextJitter       float32        `json:"next_jitter" yaml:"next_jitter"`
	NextPacketLoss   float32        `json:"next_packet_loss" yaml:"next_packet_loss"`
	Next             bool           `json:"next" yaml:"next"`
	SliceNumber      uint32         `json:"slice_number" yaml:"slice_number"`
	LastUpdate       time.Time      `json:"last_update" yaml:"last_update"`
}

// Validate checks the fields every stored entry must carry.
func (e *Entry) Validate() error {
	if e.SessionID == 0 {
		return errors.New(errors.ErrCodeSessionMalformed, "session id must not be zero")
	}
	if e.StartTime.IsZero() {
		return errors.New(errors.ErrCodeSessionMalformed, "session start time must be set").
			WithDetail("session_id=" + e.SessionID.String())
	}
	if e.Platform > PlatformMax {
		return errors.New(errors.ErrCodeSessionMalformed, fmt.Sprintf("platform type %d out of range", e.Platform))
	}
	if e.Connection > ConnectionMax {
		return errors.New(errors.ErrCodeSessionMalformed, fmt.Sprintf("connection type %d out of range", e.Connection))
	}
	return nil
}

// Improvement is direct RTT minus Network Next RTT in milliseconds. It is zero
// for sessions that are not on Network Next.
func (e *Entry) Improvement() float32 {
	if !e.Next || e.NextRTT <= 0 {
		return 0
	}
	return e.DirectRTT - e.NextRTT
}

// SortByStartDesc orders entries newest first. Ties break on session id so the
// order is stable across lookups.
func SortByStartDesc(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].StartTime.Equal(entries[j].StartTime) {
			return entries[i].StartTime.After(entries[j].StartTime)
		}
		return entries[i].SessionID > entries[j].SessionID
	})
}

// Merge combines entry lists, keeping the most recently updated copy of each
// session, orders the result newest first and truncates it to limit (limit <=
// 0 means no limit).
func Merge(limit int, lists ...[]Entry) []Entry {
	byID := make(map[ID]Entry)
	for _, list := range lists {
		for _, e := range list {
			if prev, ok := byID[e.SessionID]; ok && !e.LastUpdate.After(prev.LastUpdate) {
				continue
			}
			byID[e.SessionID] = e
		}
	}
	out := make([]Entry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	SortByStartDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Repository stores session entries indexed by user hash.
type Repository interface {
	// Record inserts or refreshes an entry.
	Record(ctx context.Context, e Entry) error
	// ListByUser returns up to limit entries for userHash, newest first.
	ListByUser(ctx context.Context, userHash ID, limit int) ([]Entry, error)
	// Get returns errors.ErrCodeSessionNotFound when the session is unknown.
	Get(ctx context.Context, sessionID ID) (*Entry, error)
}

// Counts is the number of live sessions and how many of them are currently
// accelerated by Network Next.
type Counts struct {
	Total int64 `json:"total_session_count"`
	Next  int64 `json:"next_session_count"`
}

// ActivityRepository reports portal-wide session activity.
type ActivityRepository interface {
	// Counts returns the live session counts.
	Counts(ctx context.Context) (Counts, error)
	// ListRecent returns the live sessions ranked begin (inclusive) to end
	// (exclusive), newest start first.
	ListRecent(ctx context.Context, begin, end int) ([]Entry, error)
}
