package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.Equal(t, RunnerLocal, cfg.MediaRunner)
	assert.Equal(t, QueueMemory, cfg.MediaQueue)
	assert.Equal(t, 10*time.Minute, cfg.MediaTimeout)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHubCallbackURL)
	assert.Equal(t, int64(512<<20), cfg.MaxUploadBytes())
	assert.False(t, cfg.GitHubEnabled())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=9090\nLOG_LEVEL=debug\n"), 0o600))

	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	// godotenv leaves variables it sets behind; register them for cleanup.
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("PORT")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			JWTSecret:      "0123456789abcdef",
			TokenTTL:       time.Hour,
			StoreDriver:    DriverSQLite,
			DBPath:         "x.db",
			MediaRunner:    RunnerLocal,
			MediaQueue:     QueueMemory,
			MediaWorkers:   1,
			MediaTimeout:   time.Minute,
			MaxUploadMB:    1,
			RateLimitRPS:   1,
			RateLimitBurst: 1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"unknown driver", func(c *Config) { c.StoreDriver = "postgres" }, "STORE_DRIVER"},
		{"mongo without uri", func(c *Config) { c.StoreDriver = DriverMongo }, "MONGO_URI"},
		{"unknown runner", func(c *Config) { c.MediaRunner = "k8s" }, "MEDIA_RUNNER"},
		{"unknown queue", func(c *Config) { c.MediaQueue = "kafka" }, "MEDIA_QUEUE"},
		{"no workers", func(c *Config) { c.MediaWorkers = 0 }, "MEDIA_WORKERS"},
		{"no media timeout", func(c *Config) { c.MediaTimeout = 0 }, "MEDIA_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
