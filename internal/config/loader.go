package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all portal settings.
const envPrefix = "PORTAL"

var (
	ErrConfigFileNotFound = errors.New("config: file not found")
	ErrConfigParseError   = errors.New("config: parse error")
	ErrConfigValidation   = errors.New("config: validation failed")
)

// keys lists every leaf setting so that PORTAL_* variables resolve even when
// the key is absent from the YAML file.
var keys = []string{
	"server.host", "server.port", "server.mode", "server.read_timeout", "server.write_timeout",
	"server.idle_timeout", "server.shutdown_timeout", "server.max_body_size",
	"server.cors.allowed_origins", "server.cors.allow_credentials", "server.cors.max_age",
	"server.rate_limit.enabled", "server.rate_limit.requests_per_second", "server.rate_limit.burst",

	"database.host", "database.port", "database.user", "database.password", "database.db_name",
	"database.ssl_mode", "database.max_conns", "database.max_idle_conns", "database.conn_max_lifetime",
	"database.conn_max_idle_time", "database.migration_path", "database.auto_migrate",

	"redis.addr", "redis.password", "redis.db", "redis.pool_size", "redis.min_idle_conns",
	"redis.dial_timeout", "redis.read_timeout", "redis.write_timeout", "redis.default_ttl", "redis.key_prefix",

	"kafka.brokers", "kafka.group_id", "kafka.topic", "kafka.start_offset", "kafka.min_bytes",
	"kafka.max_bytes", "kafka.max_wait", "kafka.commit_interval", "kafka.max_retries",
	"kafka.retry_backoff", "kafka.concurrency", "kafka.sasl_mechanism", "kafka.sasl_username",
	"kafka.sasl_password", "kafka.tls_enabled", "kafka.tls_ca_path",

	"auth.enabled", "auth.issuer", "auth.audience", "auth.hmac_secret", "auth.public_key_path",
	"auth.leeway", "auth.roles_claim",

	"portal.sdk_version", "portal.sdk_url", "portal.docs_url", "portal.max_sessions",
	"portal.stored_sessions_per_user", "portal.lookup_cache_ttl", "portal.profile_cache_ttl", "portal.session_ttl",
	"portal.max_user_id_length", "portal.recent_page_size",

	"log.level", "log.format", "log.output",

	"metrics.enabled", "metrics.path", "metrics.namespace",
}

// newViper builds a Viper instance with the portal's standard settings: YAML
// file type, PORTAL_ env prefix and a "." -> "_" key replacer so that
// "database.host" resolves to PORTAL_DATABASE_HOST.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	v.SetDefault("metrics.enabled", true)
	return v
}

// Load reads the YAML file at configPath, merges PORTAL_* environment
// overrides, applies defaults and validates the result. An empty configPath
// behaves like LoadFromEnv.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	v := newViper()
	if err := readFile(v, configPath); err != nil {
		return nil, err
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from PORTAL_* environment variables and
// defaults alone.
//
//	PORTAL_<SECTION>_<FIELD>   e.g.  PORTAL_REDIS_ADDR, PORTAL_PORTAL_MAX_SESSIONS
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func readFile(v *viper.Viper, configPath string) error {
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfigParseError, configPath, err)
	}
	return nil
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	return cfg, nil
}

// Watch re-reads configPath whenever it changes on disk and calls onChange
// with the new Config. Changes that fail to parse or validate are passed to
// onError (when non-nil) and onChange is not called. Callers apply only the
// settings that are safe to change at runtime, such as the log level.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	if err := readFile(v, configPath); err != nil {
		return err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on error. For main() only.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
