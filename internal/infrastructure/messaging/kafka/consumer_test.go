package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/networknext/portal/pkg/errors"
)

// fakeReader hands out queued messages, then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func testKafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		GroupID:      "portal-cruncher",
		Topic:        TopicPortalSessionUpdate,
		StartOffset:  "latest",
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(testKafkaConfig()))

	cfg := testKafkaConfig()
	cfg.Brokers = nil
	assert.True(t, pkgerrors.IsCode(ValidateConsumerConfig(cfg), pkgerrors.ErrCodeValidation))

	cfg = testKafkaConfig()
	cfg.StartOffset = "middle"
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = testKafkaConfig()
	cfg.Topic = ""
	assert.Error(t, ValidateConsumerConfig(cfg))
}

func TestNewConsumer_RequiresHandler(t *testing.T) {
	_, err := NewConsumer(testKafkaConfig(), nil, logging.NewNopLogger())
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestConsumer_ProcessesAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: TopicPortalSessionUpdate, Offset: 1, Value: []byte("a"), Headers: []kafka.Header{{Key: "k", Value: []byte("v")}}},
		{Topic: TopicPortalSessionUpdate, Offset: 2, Value: []byte("b")},
	}}

	var mu sync.Mutex
	var values []string
	handler := func(_ context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		values = append(values, string(msg.Value))
		if msg.Offset == 1 {
			assert.Equal(t, "v", msg.Headers["k"])
		}
		return nil
	}

	c, err := NewConsumer(testKafkaConfig(), handler, logging.NewNopLogger(), WithReaders(reader))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return len(reader.committedOffsets()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.Equal(t, []string{"a", "b"}, values)
	assert.Equal(t, ConsumerStats{Consumed: 2, Processed: 2}, c.Stats())
	assert.True(t, reader.closed)
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Offset: 7, Value: []byte("x")}}}
	var calls atomic.Int32
	handler := func(context.Context, *Message) error {
		if calls.Add(1) < 2 {
			return errors.New("redis unavailable")
		}
		return nil
	}

	c, err := NewConsumer(testKafkaConfig(), handler, logging.NewNopLogger(), WithReaders(reader))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return len(reader.committedOffsets()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(1), stats.Retried)
	assert.Zero(t, stats.Failed)
}

func TestConsumer_DropsAfterRetriesAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Offset: 9, Value: []byte("bad")}}}
	var calls atomic.Int32
	handler := func(context.Context, *Message) error {
		calls.Add(1)
		return errors.New("malformed")
	}

	c, err := NewConsumer(testKafkaConfig(), handler, logging.NewNopLogger(), WithReaders(reader))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return len(reader.committedOffsets()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []int64{9}, reader.committedOffsets())
	assert.Equal(t, int64(1), c.Stats().Failed)
}

func TestConsumer_CloseWithoutStart(t *testing.T) {
	reader := &fakeReader{}
	c, err := NewConsumer(testKafkaConfig(), func(context.Context, *Message) error { return nil },
		logging.NewNopLogger(), WithReaders(reader))
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.True(t, reader.closed)
}
