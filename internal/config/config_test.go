package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"rate limit without burst", func(c *Config) {
			c.Server.RateLimit.Enabled = true
			c.Server.RateLimit.Burst = 0
		}, "server.rate_limit"},
		{"missing db user", func(c *Config) { c.Database.User = "" }, "database.user"},
		{"no redis", func(c *Config) { c.Redis.Addr = "" }, "redis.addr"},
		{"negative redis db", func(c *Config) { c.Redis.DB = -1 }, "redis.db"},
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"no topic", func(c *Config) { c.Kafka.Topic = "" }, "kafka.topic"},
		{"bad offset", func(c *Config) { c.Kafka.StartOffset = "middle" }, "kafka.start_offset"},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true }, "auth.enabled"},
		{"auth with secret", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.HMACSecret = "s3cret"
		}, ""},
		{"too many sessions", func(c *Config) { c.Portal.MaxSessions = 5000 }, "portal.max_sessions"},
		{"store smaller than a page", func(c *Config) {
			c.Portal.MaxSessions = 200
			c.Portal.StoredSessionsPerUser = 100
		}, "portal.stored_sessions_per_user"},
		{"store too large", func(c *Config) { c.Portal.StoredSessionsPerUser = 50000 }, "portal.stored_sessions_per_user"},
		{"recent page too large", func(c *Config) { c.Portal.RecentPageSize = 5000 }, "portal.recent_page_size"},
		{"no docs url", func(c *Config) { c.Portal.DocsURL = "" }, "portal.sdk_url"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
