package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

const baseYAML = `
server:
  port: "9090"
  mode: debug
jwt:
  secret: test-secret
  expire_hours: 2
storage:
  type: minio
`

func TestLoadConfig_Defaults(t *testing.T) {
	dir := writeConfig(t, baseYAML)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "edunexus-user", cfg.Session.Key)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.Equal(t, 3, cfg.AI.MaxSources)
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.File)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := writeConfig(t, baseYAML)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("AI_BASE_URL", "http://llm.local/v1")
	t.Setenv("AI_API_KEY", "k")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.True(t, cfg.AI.Enabled())
}

func TestLoadConfig_ReleaseRequiresStrongSecret(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: release
jwt:
  secret: short
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"unknown-driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"redis-session-without-redis", func(c *Config) { c.Session.Backend = SessionBackendRedis }, true},
		{"redis-session-with-redis", func(c *Config) {
			c.Session.Backend = SessionBackendRedis
			c.Redis.Enabled = true
		}, false},
		{"empty-session-key", func(c *Config) { c.Session.Key = "" }, true},
		{"missing-secret", func(c *Config) { c.JWT.Secret = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{Mode: "debug"},
				JWT:      JWTConfig{Secret: "secret"},
				Database: DatabaseConfig{Driver: DriverMemory},
				Session:  SessionConfig{Key: "edunexus-user", Backend: SessionBackendMemory},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() error = %v", err)
		})
	}
}
