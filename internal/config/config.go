// Package config defines the portal's configuration structures. No I/O or
// parsing lives in this file, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	Mode            string          `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64           `mapstructure:"max_body_size"`
	CORS            CORSConfig      `mapstructure:"cors"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CORSConfig lists the origins allowed to call the JSON API from a browser.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// DatabaseConfig holds PostgreSQL connection parameters for user profiles.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis connection parameters. Redis carries the portal
// session store and the lookup cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the portal-cruncher consumer parameters.
type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	GroupID        string        `mapstructure:"group_id"`
	Topic          string        `mapstructure:"topic"`
	StartOffset    string        `mapstructure:"start_offset"` // "earliest" | "latest"
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	Concurrency    int           `mapstructure:"concurrency"`
	SASLMechanism  string        `mapstructure:"sasl_mechanism"` // "", PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	SASLUsername   string        `mapstructure:"sasl_username"`
	SASLPassword   string        `mapstructure:"sasl_password"`
	TLSEnabled     bool          `mapstructure:"tls_enabled"`
	TLSCAPath      string        `mapstructure:"tls_ca_path"`
}

// AuthConfig configures bearer-token verification. With Enabled false every
// request is anonymous.
type AuthConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	HMACSecret    string        `mapstructure:"hmac_secret"`
	PublicKeyPath string        `mapstructure:"public_key_path"`
	Leeway        time.Duration `mapstructure:"leeway"`
	RolesClaim    string        `mapstructure:"roles_claim"`
}

// PortalConfig holds the portal's own tunables. StoredSessionsPerUser caps
// each user index in the session store and bounds how far a company-scoped
// lookup scans for its MaxSessions matches.
type PortalConfig struct {
	SDKVersion            string        `mapstructure:"sdk_version"`
	SDKURL                string        `mapstructure:"sdk_url"`
	DocsURL               string        `mapstructure:"docs_url"`
	MaxSessions           int           `mapstructure:"max_sessions"`
	StoredSessionsPerUser int           `mapstructure:"stored_sessions_per_user"`
	LookupCacheTTL        time.Duration `mapstructure:"lookup_cache_ttl"`
	ProfileCacheTTL       time.Duration `mapstructure:"profile_cache_ttl"`
	SessionTTL            time.Duration `mapstructure:"session_ttl"`
	MaxUserIDLength       int           `mapstructure:"max_user_id_length"`
	RecentPageSize        int           `mapstructure:"recent_page_size"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// Validate performs semantic validation of a fully-populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RequestsPerSecond <= 0 || c.Server.RateLimit.Burst < 1) {
		return fmt.Errorf("server.rate_limit requires requests_per_second > 0 and burst >= 1")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" || c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.group_id and kafka.topic are required")
	}
	switch c.Kafka.StartOffset {
	case "earliest", "latest":
	default:
		return fmt.Errorf("kafka.start_offset %q is invalid; expected earliest|latest", c.Kafka.StartOffset)
	}
	switch c.Kafka.SASLMechanism {
	case "":
	case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		if c.Kafka.SASLUsername == "" || c.Kafka.SASLPassword == "" {
			return fmt.Errorf("kafka.sasl_mechanism %s requires sasl_username and sasl_password", c.Kafka.SASLMechanism)
		}
	default:
		return fmt.Errorf("kafka.sasl_mechanism %q is invalid; expected PLAIN|SCRAM-SHA-256|SCRAM-SHA-512", c.Kafka.SASLMechanism)
	}

	if c.Auth.Enabled && c.Auth.HMACSecret == "" && c.Auth.PublicKeyPath == "" {
		return fmt.Errorf("auth.enabled requires auth.hmac_secret or auth.public_key_path")
	}

	if c.Portal.MaxSessions < 1 || c.Portal.MaxSessions > 1000 {
		return fmt.Errorf("portal.max_sessions %d is out of range [1, 1000]", c.Portal.MaxSessions)
	}
	if c.Portal.StoredSessionsPerUser < c.Portal.MaxSessions || c.Portal.StoredSessionsPerUser > 10000 {
		return fmt.Errorf("portal.stored_sessions_per_user %d is out of range [%d, 10000]", c.Portal.StoredSessionsPerUser, c.Portal.MaxSessions)
	}
	if c.Portal.RecentPageSize < 1 || c.Portal.RecentPageSize > 1000 {
		return fmt.Errorf("portal.recent_page_size %d is out of range [1, 1000]", c.Portal.RecentPageSize)
	}
	if c.Portal.SDKURL == "" || c.Portal.DocsURL == "" {
		return fmt.Errorf("portal.sdk_url and portal.docs_url are required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
