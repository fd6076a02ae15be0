package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
	ErrNoHandler      = errors.New(errors.ErrCodeMessageQueueError, "consumer has no handler")
)

const (
	defaultMaxRetryBackoff = 5 * time.Second
	fetchErrorBackoff      = time.Second
)

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerStats is a snapshot of consumer counters.
type ConsumerStats struct {
	Consumed  int64
	Processed int64
	Failed    int64
	Retried   int64
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithReaders replaces the kafka readers, one per worker.
func WithReaders(readers ...ReaderInterface) ConsumerOption {
	return func(c *Consumer) { c.readers = readers }
}

// Consumer reads one topic with a group of readers and hands every message to
// a single handler. Handler failures are retried with exponential backoff;
// after the last retry the message is logged and committed.
type Consumer struct {
	readers []ReaderInterface
	cfg     config.KafkaConfig
	logger  logging.Logger
	handler MessageHandler

	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	consumed  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

// NewConsumer creates cfg.Concurrency group readers for cfg.Topic.
func NewConsumer(cfg config.KafkaConfig, handler MessageHandler, logger logging.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, ErrNoHandler
	}

	c := &Consumer{
		cfg:     cfg,
		logger:  logger.Named("kafka-consumer"),
		handler: handler,
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.readers) > 0 {
		return c, nil
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	mech, err := saslMechanism(cfg)
	if err != nil {
		return nil, err
	}
	dialer.SASLMechanism = mech
	if dialer.TLS, err = tlsConfig(cfg); err != nil {
		return nil, err
	}

	startOffset := kafka.LastOffset
	if cfg.StartOffset == "earliest" {
		startOffset = kafka.FirstOffset
	}

	workers := cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		c.readers = append(c.readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			Topic:          cfg.Topic,
			MinBytes:       cfg.MinBytes,
			MaxBytes:       cfg.MaxBytes,
			MaxWait:        cfg.MaxWait,
			CommitInterval: cfg.CommitInterval,
			StartOffset:    startOffset,
			Dialer:         dialer,
		}))
	}
	return c, nil
}

// Start launches one consume loop per reader.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for i, r := range c.readers {
		c.wg.Add(1)
		go c.consumeLoop(ctx, i, r)
	}

	c.logger.Info("kafka consumer started",
		logging.String("group", c.cfg.GroupID),
		logging.String("topic", c.cfg.Topic),
		logging.Int("workers", len(c.readers)),
	)
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, worker int, reader ReaderInterface) {
	defer c.wg.Done()
	log := c.logger.With(logging.Int("worker", worker))

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("fetch message failed", logging.Err(err))
			if !sleep(ctx, fetchErrorBackoff) {
				return
			}
			continue
		}
		c.consumed.Add(1)

		msg := &Message{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Key:       m.Key,
			Value:     m.Value,
			Timestamp: m.Time,
			Headers:   make(map[string]string, len(m.Headers)),
		}
		for _, h := range m.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}

		if err := c.processMessage(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.failed.Add(1)
			log.Error("dropping message after retries",
				logging.Int("partition", msg.Partition),
				logging.Int64("offset", msg.Offset),
				logging.Err(err),
			)
		} else {
			c.processed.Add(1)
		}

		if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			log.Error("commit failed", logging.Int64("offset", m.Offset), logging.Err(err))
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *Message) error {
	err := c.handler(ctx, msg)
	if err == nil {
		return nil
	}

	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	for i := 0; i < c.cfg.MaxRetries; i++ {
		c.retried.Add(1)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		if err = c.handler(ctx, msg); err == nil {
			return nil
		}
		backoff *= 2
		if backoff > defaultMaxRetryBackoff {
			backoff = defaultMaxRetryBackoff
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Stats returns a snapshot of the consumer counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Consumed:  c.consumed.Load(),
		Processed: c.processed.Load(),
		Failed:    c.failed.Load(),
		Retried:   c.retried.Load(),
	}
}

// Close stops the loops and closes the readers. It is safe to call more than once.
func (c *Consumer) Close() error {
	if c.running.CompareAndSwap(true, false) {
		c.cancel()
		c.wg.Wait()
	}

	var firstErr error
	c.closeOnce.Do(func() {
		for _, r := range c.readers {
			if err := r.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		c.logger.Info("kafka consumer closed",
			logging.Int64("consumed", c.consumed.Load()),
			logging.Int64("failed", c.failed.Load()),
		)
	})
	return firstErr
}

// ValidateConsumerConfig checks the settings the consumer cannot default.
func ValidateConsumerConfig(cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "kafka group id required")
	}
	if cfg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "kafka topic required")
	}
	if cfg.StartOffset != "" && cfg.StartOffset != "earliest" && cfg.StartOffset != "latest" {
		return errors.New(errors.ErrCodeValidation, "kafka start offset must be earliest or latest")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "kafka max retries must be >= 0")
	}
	return nil
}
