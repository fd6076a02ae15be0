package kafka

import (
	stderrors "errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	Retention         time.Duration
}

// PortalTopics lists the topics the portal depends on.
func PortalTopics() []TopicConfig {
	return []TopicConfig{
		{Name: TopicPortalSessionUpdate, NumPartitions: 8, ReplicationFactor: 1, Retention: 24 * time.Hour},
	}
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates topics in development environments.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker.
func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to dial kafka")
	}
	return NewTopicManagerWithConn(conn, logger), nil
}

// NewTopicManagerWithConn wraps an existing connection.
func NewTopicManagerWithConn(conn ConnInterface, logger logging.Logger) *TopicManager {
	return &TopicManager{conn: conn, logger: logger}
}

// EnsureTopics creates every missing topic.
func (m *TopicManager) EnsureTopics(topics ...TopicConfig) error {
	for _, t := range topics {
		if err := m.createTopic(t); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) createTopic(cfg TopicConfig) error {
	if cfg.Name == "" || cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
		return errors.InvalidParam("topic needs a name, partitions and a replication factor")
	}
	exists, err := m.TopicExists(cfg.Name)
	if err == nil && exists {
		return nil
	}

	kc := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.Retention > 0 {
		kc.ConfigEntries = append(kc.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(cfg.Retention.Milliseconds(), 10),
		})
	}
	if err := m.conn.CreateTopics(kc); err != nil {
		if stderrors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to create topic "+cfg.Name)
	}
	m.logger.Info("topic created", logging.String("topic", cfg.Name))
	return nil
}

// TopicExists reports whether the topic has partitions.
func (m *TopicManager) TopicExists(name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		if stderrors.Is(err, kafka.UnknownTopicOrPartition) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to read partitions")
	}
	return len(partitions) > 0, nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}
