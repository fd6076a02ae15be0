package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeMessageQueueError, "producer closed")

const maxMessageBytes = 1 << 20

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithWriter replaces the kafka writer.
func WithWriter(w WriterInterface) ProducerOption {
	return func(p *Producer) { p.writer = w }
}

// Producer publishes records keyed by the caller.
type Producer struct {
	writer WriterInterface
	logger logging.Logger
	closed atomic.Bool
	sent   atomic.Int64
}

// NewProducer builds a synchronous hash-balanced writer for cfg.Brokers.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger, opts ...ProducerOption) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	p := &Producer{logger: logger.Named("kafka-producer")}
	for _, opt := range opts {
		opt(p)
	}
	if p.writer != nil {
		return p, nil
	}

	transport := &kafka.Transport{DialTimeout: 10 * time.Second}
	mech, err := saslMechanism(cfg)
	if err != nil {
		return nil, err
	}
	transport.SASL = mech
	if transport.TLS, err = tlsConfig(cfg); err != nil {
		return nil, err
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxRetries + 1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
		Transport:    transport,
	}
	return p, nil
}

// Publish writes msgs in one batch.
func (p *Producer) Publish(ctx context.Context, msgs ...*ProducerMessage) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(msgs) == 0 {
		return nil
	}

	batch := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Topic == "" {
			return errors.New(errors.ErrCodeValidation, "message topic required")
		}
		if len(msg.Value) == 0 {
			return errors.New(errors.ErrCodeValidation, "message value required")
		}
		if len(msg.Value) > maxMessageBytes {
			return errors.New(errors.ErrCodeValidation, "message too large")
		}
		batch = append(batch, toKafkaMessage(msg))
	}

	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		return errors.Wrap(err, errors.ErrCodeMessageQueueError, "publish failed")
	}
	p.sent.Add(int64(len(batch)))
	p.logger.Debug("messages published", logging.Int("count", len(batch)))
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed", logging.Int64("sent", p.sent.Load()))
	return err
}

func toKafkaMessage(msg *ProducerMessage) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}
