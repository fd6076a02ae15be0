package config

import "time"

const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 20000
	DefaultServerMode = "release"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBUser     = "portal"
	DefaultDBName     = "portal"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "portal:"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "portal-cruncher"
	DefaultKafkaTopic   = "portal_session_update"

	DefaultSDKVersion = "4.0.3"
	DefaultSDKURL     = "https://storage.googleapis.com/portal_sdk_download_storage/next-4.0.3.zip"
	DefaultDocsURL    = "https://network-next-sdk.readthedocs-hosted.com/en/latest/"

	DefaultMaxSessions     = 100
	DefaultStoredSessions  = 1000
	DefaultRecentPageSize  = 100
	DefaultMaxUserIDLength = 256
	DefaultLookupCacheTTL  = 10 * time.Second
	DefaultProfileCacheTTL = time.Minute
	DefaultSessionTTL      = 24 * time.Hour

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "portal"
)

// ApplyDefaults fills every zero-value field in cfg with its default. Fields
// already set are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 1 << 20
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = 86400
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = 20
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 40
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 10 * time.Minute
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 20
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = 10 * time.Minute
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.StartOffset == "" {
		cfg.Kafka.StartOffset = "latest"
	}
	if cfg.Kafka.MinBytes == 0 {
		cfg.Kafka.MinBytes = 1
	}
	if cfg.Kafka.MaxBytes == 0 {
		cfg.Kafka.MaxBytes = 10 << 20
	}
	if cfg.Kafka.MaxWait == 0 {
		cfg.Kafka.MaxWait = 500 * time.Millisecond
	}
	if cfg.Kafka.CommitInterval == 0 {
		cfg.Kafka.CommitInterval = time.Second
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.Kafka.Concurrency == 0 {
		cfg.Kafka.Concurrency = 4
	}

	if cfg.Auth.Leeway == 0 {
		cfg.Auth.Leeway = 30 * time.Second
	}
	if cfg.Auth.RolesClaim == "" {
		cfg.Auth.RolesClaim = "roles"
	}

	if cfg.Portal.SDKVersion == "" {
		cfg.Portal.SDKVersion = DefaultSDKVersion
	}
	if cfg.Portal.SDKURL == "" {
		cfg.Portal.SDKURL = DefaultSDKURL
	}
	if cfg.Portal.DocsURL == "" {
		cfg.Portal.DocsURL = DefaultDocsURL
	}
	if cfg.Portal.MaxSessions == 0 {
		cfg.Portal.MaxSessions = DefaultMaxSessions
	}
	if cfg.Portal.StoredSessionsPerUser == 0 {
		cfg.Portal.StoredSessionsPerUser = DefaultStoredSessions
	}
	if cfg.Portal.RecentPageSize == 0 {
		cfg.Portal.RecentPageSize = DefaultRecentPageSize
	}
	if cfg.Portal.MaxUserIDLength == 0 {
		cfg.Portal.MaxUserIDLength = DefaultMaxUserIDLength
	}
	if cfg.Portal.LookupCacheTTL == 0 {
		cfg.Portal.LookupCacheTTL = DefaultLookupCacheTTL
	}
	if cfg.Portal.ProfileCacheTTL == 0 {
		cfg.Portal.ProfileCacheTTL = DefaultProfileCacheTTL
	}
	if cfg.Portal.SessionTTL == 0 {
		cfg.Portal.SessionTTL = DefaultSessionTTL
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
