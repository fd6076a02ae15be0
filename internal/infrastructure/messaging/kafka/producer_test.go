package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/networknext/portal/pkg/errors"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(msgs).Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func newTestProducer(t *testing.T, w WriterInterface) *Producer {
	t.Helper()
	p, err := NewProducer(testKafkaConfig(), logging.NewNopLogger(), WithWriter(w))
	require.NoError(t, err)
	return p
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	cfg := testKafkaConfig()
	cfg.Brokers = nil
	_, err := NewProducer(cfg, logging.NewNopLogger())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestProducer_Publish(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 2 &&
			msgs[0].Topic == TopicPortalSessionUpdate &&
			string(msgs[0].Key) == "k1" &&
			len(msgs[0].Headers) == 1 &&
			!msgs[1].Time.IsZero()
	})).Return(nil)

	p := newTestProducer(t, w)
	err := p.Publish(context.Background(),
		&ProducerMessage{Topic: TopicPortalSessionUpdate, Key: []byte("k1"), Value: []byte("{}"), Headers: map[string]string{"source": "seed"}},
		&ProducerMessage{Topic: TopicPortalSessionUpdate, Value: []byte("{}")},
	)
	require.NoError(t, err)
	w.AssertExpectations(t)
}

func TestProducer_PublishValidation(t *testing.T) {
	p := newTestProducer(t, new(mockWriter))

	assert.NoError(t, p.Publish(context.Background()))
	assert.Error(t, p.Publish(context.Background(), &ProducerMessage{Value: []byte("x")}))
	assert.Error(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t"}))
	assert.Error(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: make([]byte, maxMessageBytes+1)}))
}

func TestProducer_WriteFailure(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.Anything).Return(errors.New("leader not available"))

	err := newTestProducer(t, w).Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMessageQueueError))
}

func TestProducer_Close(t *testing.T) {
	w := new(mockWriter)
	w.On("Close").Return(nil).Once()

	p := newTestProducer(t, w)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")}), ErrProducerClosed)
	w.AssertExpectations(t)
}
