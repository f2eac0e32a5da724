package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:       AppConfig{Environment: "development"},
		Logger:    LoggerConfig{Level: "info"},
		Data:      DataConfig{BasePath: "/data", DatabasePath: "/data/libris.db"},
		Auth:      AuthConfig{LoginRatePerMinute: 10},
		Recommend: RecommendConfig{TopK: 5, FavoriteLimit: 20, Strategy: "fold"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Environments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }},
		{"empty database path", func(c *Config) { c.Data.DatabasePath = "" }},
		{"zero top k", func(c *Config) { c.Recommend.TopK = 0 }},
		{"negative favorite limit", func(c *Config) { c.Recommend.FavoriteLimit = -1 }},
		{"unknown strategy", func(c *Config) { c.Recommend.Strategy = "magic" }},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
		{"zero login rate", func(c *Config) { c.Auth.LoginRatePerMinute = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load([]string{"-data-path", dir, "-env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "libris.db"), cfg.Data.DatabasePath)
	assert.Equal(t, filepath.Join(dir, "search"), cfg.Data.SearchIndexPath)
	assert.Equal(t, dir, cfg.Data.KeyPath)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTokenDuration)
	assert.Equal(t, 5, cfg.Recommend.TopK)
	assert.Equal(t, 20, cfg.Recommend.FavoriteLimit)
	assert.True(t, cfg.Similarity.Symmetrize)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"# comment\nSERVER_PORT=9000\nRECOMMEND_TOP_K=\"7\"\nREDIS_TTL=5m\n"), 0o600))

	t.Setenv("SERVER_PORT", "9100")

	cfg, err := Load([]string{"-data-path", dir, "-env-file", envFile, "-favorite-limit", "3"})
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port, "environment beats .env")
	assert.Equal(t, 7, cfg.Recommend.TopK, ".env beats default")
	assert.Equal(t, 3, cfg.Recommend.FavoriteLimit, "flag beats default")
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()

	_, err := Load([]string{"-data-path", dir, "-env-file", "", "-redis-ttl", "soon"})
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/libris", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "libris"), got)

	got, err = expandPath("", "/fallback")
	require.NoError(t, err)
	assert.Equal(t, "/fallback", got)

	got, err = expandPath("/a/b/../c", "")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", got)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"},
		splitList(" https://a.example, ,https://b.example "))
	assert.Nil(t, splitList(""))
}
