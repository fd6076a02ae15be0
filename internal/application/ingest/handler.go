// Package ingest turns portal session update messages into session store
// entries.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/infrastructure/messaging/kafka"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

// Ingest outcomes reported to the observer.
const (
	OutcomeRecorded  = "recorded"
	OutcomeSkipped   = "skipped"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

// SessionUpdate is the JSON body of a portal_session_update message. Numeric
// ids are sent as JSON numbers; buyer and datacenter may be sent by code or
// by 64-bit id.
type SessionUpdate struct {
	Timestamp        uint64  `json:"timestamp"`
	SessionID        uint64  `json:"session_id"`
	UserHash         uint64  `json:"user_hash"`
	StartTime        uint64  `json:"start_time"`
	BuyerID          uint64  `json:"buyer_id,omitempty"`
	BuyerCode        string  `json:"buyer_code,omitempty"`
	DatacenterID     uint64  `json:"datacenter_id,omitempty"`
	Datacenter       string  `json:"datacenter,omitempty"`
	SDKVersionMajor  uint8   `json:"sdk_version_major"`
	SDKVersionMinor  uint8   `json:"sdk_version_minor"`
	SDKVersionPatch  uint8   `json:"sdk_version_patch"`
	PlatformType     uint8   `json:"platform_type"`
	ConnectionType   uint8   `json:"connection_type"`
	SliceNumber      uint32  `json:"slice_number"`
	DirectRTT        float32 `json:"direct_rtt"`
	DirectJitter     float32 `json:"direct_jitter"`
	DirectPacketLoss float32 `json:"direct_packet_loss"`
	Next             bool    `json:"next"`
	NextRTT          float32 `json:"next_rtt"`
	NextJitter       float32 `json:"next_jitter"`
	NextPacketLoss   float32 `json:"next_packet_loss"`
	// SendToPortal defaults to true when absent.
	SendToPortal *bool `json:"send_to_portal,omitempty"`
}

// FromEntry builds the update message that would produce e.
func FromEntry(e session.Entry) SessionUpdate {
	var major, minor, patch uint8
	_, _ = fmt.Sscanf(e.SDKVersion, "%d.%d.%d", &major, &minor, &patch)
	send := true
	u := SessionUpdate{
		SessionID:        uint64(e.SessionID),
		UserHash:         uint64(e.UserHash),
		StartTime:        uint64(e.StartTime.Unix()),
		BuyerCode:        e.BuyerCode,
		Datacenter:       e.Datacenter,
		SDKVersionMajor:  major,
		SDKVersionMinor:  minor,
		SDKVersionPatch:  patch,
		PlatformType:     uint8(e.Platform),
		ConnectionType:   uint8(e.Connection),
		SliceNumber:      e.SliceNumber,
		DirectRTT:        e.DirectRTT,
		DirectJitter:     e.DirectJitter,
		DirectPacketLoss: e.DirectPacketLoss,
		Next:             e.Next,
		NextRTT:          e.NextRTT,
		NextJitter:       e.NextJitter,
		NextPacketLoss:   e.NextPacketLoss,
		SendToPortal:     &send,
	}
	if !e.LastUpdate.IsZero() {
		u.Timestamp = uint64(e.LastUpdate.Unix())
	}
	return u
}

// Entry converts the update into a session entry. now stamps entries whose
// message carries no timestamp.
func (u *SessionUpdate) Entry(now time.Time) (session.Entry, error) {
	if u.StartTime == 0 {
		return session.Entry{}, errors.New(errors.ErrCodeSessionMalformed, "start_time must be set").
			WithDetail(fmt.Sprintf("session_id=%016x", u.SessionID))
	}
	e := session.Entry{
		SessionID:        session.ID(u.SessionID),
		UserHash:         session.ID(u.UserHash),
		StartTime:        time.Unix(int64(u.StartTime), 0).UTC(),
		BuyerCode:        u.BuyerCode,
		Datacenter:       u.Datacenter,
		Platform:         session.PlatformType(u.PlatformType),
		Connection:       session.ConnectionType(u.ConnectionType),
		SDKVersion:       fmt.Sprintf("%d.%d.%d", u.SDKVersionMajor, u.SDKVersionMinor, u.SDKVersionPatch),
		DirectRTT:        u.DirectRTT,
		DirectJitter:     u.DirectJitter,
		DirectPacketLoss: u.DirectPacketLoss,
		Next:             u.Next,
		SliceNumber:      u.SliceNumber,
		LastUpdate:       now.UTC(),
	}
	if e.BuyerCode == "" && u.BuyerID != 0 {
		e.BuyerCode = fmt.Sprintf("%016x", u.BuyerID)
	}
	if e.Datacenter == "" && u.DatacenterID != 0 {
		e.Datacenter = fmt.Sprintf("%016x", u.DatacenterID)
	}
	if u.Next {
		e.NextRTT = u.NextRTT
		e.NextJitter = u.NextJitter
		e.NextPacketLoss = u.NextPacketLoss
	}
	if u.Timestamp != 0 {
		e.LastUpdate = time.Unix(int64(u.Timestamp), 0).UTC()
	}
	if err := e.Validate(); err != nil {
		return session.Entry{}, err
	}
	return e, nil
}

// Observer receives one notification per handled message.
type Observer interface {
	RecordIngest(outcome string, duration time.Duration)
}

type Option func(*Handler)

func WithObserver(o Observer) Option {
	return func(h *Handler) { h.observer = o }
}

// WithClock overrides the time source used for messages without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// Handler records portal session updates into the session store.
type Handler struct {
	repo     session.Repository
	observer Observer
	now      func() time.Time
	logger   logging.Logger
}

func NewHandler(repo session.Repository, logger logging.Logger, opts ...Option) *Handler {
	h := &Handler{
		repo:   repo,
		now:    time.Now,
		logger: logger.Named("ingest"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes one consumed message. It matches kafka.MessageHandler.
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) error {
	start := time.Now()
	outcome, err := h.handle(ctx, msg.Value)
	if h.observer != nil {
		h.observer.RecordIngest(outcome, time.Since(start))
	}
	if err != nil && outcome == OutcomeMalformed {
		h.logger.Warn("Malformed portal session update",
			logging.String("topic", msg.Topic),
			logging.Int("partition", msg.Partition),
			logging.Int64("offset", msg.Offset),
			logging.Err(err))
	}
	return err
}

func (h *Handler) handle(ctx context.Context, value []byte) (string, error) {
	var u SessionUpdate
	if err := json.Unmarshal(value, &u); err != nil {
		return OutcomeMalformed, errors.Wrap(err, errors.ErrCodeSessionMalformed, "portal session update is not valid JSON")
	}
	if u.SendToPortal != nil && !*u.SendToPortal {
		return OutcomeSkipped, nil
	}
	e, err := u.Entry(h.now())
	if err != nil {
		return OutcomeMalformed, err
	}
	if err := h.repo.Record(ctx, e); err != nil {
		return OutcomeFailed, err
	}
	h.logger.Debug("Session recorded",
		logging.Hex("session_id", uint64(e.SessionID)),
		logging.Hex("user_hash", uint64(e.UserHash)),
		logging.Uint64("slice", uint64(e.SliceNumber)))
	return OutcomeRecorded, nil
}
