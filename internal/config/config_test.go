package config

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Port:      "8080",
		Env:       "development",
		LogLevel:  "info",
		DBPath:    "data/forum.db",
		JWTSecret: defaultJWTSecret,
	}
}

func TestConfig_Validate(t *testing.T) {
	strong := strings.Repeat("s", 40)

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"development defaults", func(*Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing db path", func(c *Config) { c.DBPath = "" }, true},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"production with default secret", func(c *Config) {
			c.Env = "production"
			c.GoogleClientID, c.GoogleClientSecret = "id", "secret"
		}, true},
		{"production without google", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = strong
		}, true},
		{"production with wildcard origin", func(c *Config) {
			c.Env = "prod"
			c.JWTSecret = strong
			c.GoogleClientID, c.GoogleClientSecret = "id", "secret"
			c.AllowedOrigins = " * "
		}, true},
		{"production complete", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = strong
			c.GoogleClientID, c.GoogleClientSecret = "id", "secret"
			c.AllowedOrigins = "https://forum.uni.edu"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", " Development ")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ADMIN_EMAIL", "ops@uni.edu")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, "development", c.Env)
	assert.Equal(t, "ops@uni.edu", c.AdminEmail)
	assert.Equal(t, "redis://localhost:6379/0", c.RedisURL)
	assert.Equal(t, "http://localhost:9090/auth/google/callback", c.GoogleCallbackURL)

	level, err := c.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "data/forum.db", c.DBPath)
	assert.Empty(t, c.RedisURL)
	assert.False(t, c.GoogleEnabled())
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, c.Origins())
}
