package cli

import (
	"context"

	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/domain/session"
	rediscache "github.com/networknext/portal/internal/infrastructure/database/redis"
	"github.com/networknext/portal/internal/infrastructure/messaging/kafka"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/internal/infrastructure/monitoring/prometheus"
	"github.com/networknext/portal/internal/interfaces/http/handlers"
)

// Backend is the session store an operator command works against, plus the
// portal's response cache when the store is Redis.
type Backend struct {
	Sessions session.Repository
	Cache    CacheFlusher
	closer   func() error
}

// CacheFlusher drops cached entries by key prefix.
type CacheFlusher interface {
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// NewBackend wraps repo. closer may be nil.
func NewBackend(repo session.Repository, closer func() error) *Backend {
	return &Backend{Sessions: repo, closer: closer}
}

// WithCache attaches the portal cache.
func (b *Backend) WithCache(c CacheFlusher) *Backend {
	b.Cache = c
	return b
}

func (b *Backend) Close() error {
	if b == nil || b.closer == nil {
		return nil
	}
	return b.closer()
}

// BackendOpener connects to the session store described by cfg.
type BackendOpener func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Backend, error)

// OpenRedisBackend connects to the Redis session store.
func OpenRedisBackend(_ context.Context, cfg *config.Config, logger logging.Logger) (*Backend, error) {
	client, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	return NewBackend(newSessionStore(client, cfg, logger), client.Close).
		WithCache(newPortalCache(client, cfg, logger)), nil
}

// newPortalCache is the cache the portal keeps its lookup and profile
// results in.
func newPortalCache(client *rediscache.Client, cfg *config.Config, logger logging.Logger, opts ...rediscache.CacheOption) rediscache.Cache {
	opts = append([]rediscache.CacheOption{
		rediscache.WithPrefix(cfg.Redis.KeyPrefix + "cache:"),
		rediscache.WithDefaultTTL(cfg.Redis.DefaultTTL),
	}, opts...)
	return rediscache.NewRedisCache(client, logger, opts...)
}

func openRedis(cfg config.RedisConfig, logger logging.Logger) (*rediscache.Client, error) {
	return rediscache.NewClient(&rediscache.RedisConfig{
		Mode:         "standalone",
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, logger)
}

// redisReadiness pings client and publishes its pool gauges on every
// readiness check.
func redisReadiness(client *rediscache.Client, metrics *prometheus.PortalMetrics) handlers.HealthChecker {
	return handlers.NewChecker("redis", func(ctx context.Context) error {
		recordPoolStats(client, metrics)
		return client.Ping(ctx)
	})
}

func recordPoolStats(client *rediscache.Client, metrics *prometheus.PortalMetrics) {
	if s := client.PoolStats(); s != nil {
		metrics.RecordRedisPool(s.TotalConns, s.IdleConns, s.StaleConns, s.Timeouts)
	}
}

func newSessionStore(client *rediscache.Client, cfg *config.Config, logger logging.Logger) *rediscache.SessionStore {
	return rediscache.NewSessionStore(client, logger,
		rediscache.WithSessionPrefix(cfg.Redis.KeyPrefix),
		rediscache.WithSessionTTL(cfg.Portal.SessionTTL),
		rediscache.WithMaxSessionsPerUser(cfg.Portal.StoredSessionsPerUser),
	)
}

// Publisher sends portal session updates to Kafka.
type Publisher interface {
	Publish(ctx context.Context, msgs ...*kafka.ProducerMessage) error
	Close() error
}

// PublisherOpener builds a Publisher for cfg.
type PublisherOpener func(cfg config.KafkaConfig, logger logging.Logger) (Publisher, error)

// OpenKafkaPublisher makes sure the portal topics exist and returns a
// producer for them. A failure to create topics is logged, not returned,
// since brokers with auto-creation still accept the writes.
func OpenKafkaPublisher(cfg config.KafkaConfig, logger logging.Logger) (Publisher, error) {
	if tm, err := kafka.NewTopicManager(cfg.Brokers, logger); err != nil {
		logger.Warn("Kafka topic manager unavailable", logging.Err(err))
	} else {
		if err := tm.EnsureTopics(kafka.PortalTopics()...); err != nil {
			logger.Warn("Failed to ensure portal topics", logging.Err(err))
		}
		_ = tm.Close()
	}
	return kafka.NewProducer(cfg, logger)
}
