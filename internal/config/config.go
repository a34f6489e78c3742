// Package config loads server settings from the environment.
//
// Values come from process environment variables, optionally seeded from a
// .env file first. godotenv never overrides a variable that is already set,
// so the real environment always wins over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Media runners and queues.
const (
	RunnerLocal  = "local"
	RunnerDocker = "docker"
	QueueMemory  = "memory"
	QueueRedis   = "redis"
)

// Config is every setting the server reads.
type Config struct {
	Port int `env:"PORT" envDefault:"8080"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DBPath        string `env:"DB_PATH" envDefault:"data/watchme.db"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"watchme"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"12h"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`
	GitHubAPIURL       string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	FrontendURL        string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	UploadDir   string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadMB int64  `env:"MAX_UPLOAD_MB" envDefault:"512"`

	MediaRunner     string        `env:"MEDIA_RUNNER" envDefault:"local"`
	MediaWorkers    int           `env:"MEDIA_WORKERS" envDefault:"2"`
	MediaQueue      string        `env:"MEDIA_QUEUE" envDefault:"memory"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	FFmpegImage     string        `env:"FFMPEG_IMAGE" envDefault:"jrottenberg/ffmpeg:6.1-alpine"`
	MediaTimeout    time.Duration `env:"MEDIA_TIMEOUT" envDefault:"10m"`
	MediaStaleAfter time.Duration `env:"MEDIA_STALE_AFTER" envDefault:"30m"`
	MediaSweepSpec  string        `env:"MEDIA_SWEEP_SPEC" envDefault:"0 */5 * * * *"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	Log Log `envPrefix:"LOG_"`
}

// Log configures the slog handler and the optional rotating file.
type Log struct {
	Format     string `env:"FORMAT" envDefault:"text"`
	Level      string `env:"LEVEL" envDefault:"info"`
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"28"`
}

// Load reads envFile when it exists, then parses the environment.
// A missing envFile is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
			}
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks rules that span more than one field.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of sqlite, mongo", c.StoreDriver))
	}

	if c.MediaRunner != RunnerLocal && c.MediaRunner != RunnerDocker {
		errs = append(errs, fmt.Errorf("MEDIA_RUNNER %q is not one of local, docker", c.MediaRunner))
	}
	if c.MediaQueue != QueueMemory && c.MediaQueue != QueueRedis {
		errs = append(errs, fmt.Errorf("MEDIA_QUEUE %q is not one of memory, redis", c.MediaQueue))
	}
	if c.MediaWorkers < 1 {
		errs = append(errs, errors.New("MEDIA_WORKERS must be at least 1"))
	}
	if c.MediaTimeout <= 0 {
		errs = append(errs, errors.New("MEDIA_TIMEOUT must be positive"))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be at least 1"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// GitHubEnabled reports whether GitHub login can be offered.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// MaxUploadBytes is MAX_UPLOAD_MB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
