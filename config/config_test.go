package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, 500*time.Millisecond, cfg.AdvanceDelay)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 50, cfg.DefaultVolume)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr())
	assert.False(t, cfg.MinioEnabled())
	assert.NoError(t, cfg.ValidateBot())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("IDLE_TIMEOUT", "45s")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.IdleTimeout)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, "127.0.0.1:6380", cfg.RedisAddr())
}

func TestValidateBot(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.DiscordToken = "" }, "DISCORD_TOKEN"},
		{"bad backend", func(c *Config) { c.CacheBackend = "memcached" }, "CACHE_BACKEND"},
		{"zero idle timeout", func(c *Config) { c.IdleTimeout = 0 }, "IDLE_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DiscordToken: "t", CacheBackend: "memory", IdleTimeout: time.Second}
			tt.mutate(cfg)
			err := cfg.ValidateBot()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
