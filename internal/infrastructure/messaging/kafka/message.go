// Package kafka carries portal session updates between the session pipeline
// and the portal cruncher.
package kafka

import (
	"context"
	"time"
)

const (
	// TopicPortalSessionUpdate receives one message per session slice that the
	// backend marks for the portal.
	TopicPortalSessionUpdate = "portal_session_update"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message. A returned error triggers a retry.
type MessageHandler func(ctx context.Context, msg *Message) error

// ProducerMessage is a record to publish.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}
