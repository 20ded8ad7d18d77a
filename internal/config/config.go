package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	EngineBackendCLI    = "cli"
	EngineBackendRemote = "remote"

	CleanupBackendLocal = "local"
	CleanupBackendAsynq = "asynq"
)

type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Engine    EngineConfig    `envPrefix:"ENGINE_"`
	Files     FilesConfig
	Cleanup   CleanupConfig   `envPrefix:"CLEANUP_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Log       LogConfig       `envPrefix:"LOG_"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

type ServerConfig struct {
	Host         string        `env:"HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"PORT" envDefault:"8000"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10m"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// EngineConfig selects and parameterizes the inference backend. Model and
// Vocoder are fixed for the life of the process.
type EngineConfig struct {
	Backend        string        `env:"BACKEND" envDefault:"cli"`    // "cli" or "remote"
	Command        string        `env:"COMMAND" envDefault:"f5-tts_infer-cli"`
	Model          string        `env:"MODEL" envDefault:"F5-TTS"`
	Vocoder        string        `env:"VOCODER" envDefault:"vocos"`
	Device         string        `env:"DEVICE"` // empty: detect
	RemoteURL      string        `env:"REMOTE_URL" envDefault:"http://localhost:7860"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY" envDefault:"1"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"0s"`
	InitTimeout    time.Duration `env:"INIT_TIMEOUT" envDefault:"2m"`
}

type FilesConfig struct {
	TempDir        string        `env:"TEMP_DIR"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT" envDefault:"60s"`
}

type CleanupConfig struct {
	Backend       string        `env:"BACKEND" envDefault:"local"` // "local" or "asynq"
	Delay         time.Duration `env:"DELAY" envDefault:"1s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	SweepCron     string        `env:"SWEEP_CRON" envDefault:"@every 5m"`
	MaxAge        time.Duration `env:"MAX_AGE" envDefault:"15m"`
}

type RateLimitConfig struct {
	RPS   float64 `env:"RPS" envDefault:"10"`
	Burst int     `env:"BURST" envDefault:"20"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Files.TempDir == "" {
		cfg.Files.TempDir = filepath.Join(os.TempDir(), "f5tts-api")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var problems []string

	switch c.Engine.Backend {
	case EngineBackendCLI:
		if strings.TrimSpace(c.Engine.Command) == "" {
			problems = append(problems, "ENGINE_COMMAND must not be empty")
		}
	case EngineBackendRemote:
		if c.Engine.RemoteURL == "" {
			problems = append(problems, "ENGINE_REMOTE_URL must not be empty")
		}
	default:
		problems = append(problems, fmt.Sprintf("ENGINE_BACKEND must be %q or %q, got %q",
			EngineBackendCLI, EngineBackendRemote, c.Engine.Backend))
	}

	switch c.Cleanup.Backend {
	case CleanupBackendLocal, CleanupBackendAsynq:
	default:
		problems = append(problems, fmt.Sprintf("CLEANUP_BACKEND must be %q or %q, got %q",
			CleanupBackendLocal, CleanupBackendAsynq, c.Cleanup.Backend))
	}

	if c.Engine.Model == "" {
		problems = append(problems, "ENGINE_MODEL must not be empty")
	}
	if c.Engine.Vocoder == "" {
		problems = append(problems, "ENGINE_VOCODER must not be empty")
	}
	if c.Engine.MaxConcurrency < 0 {
		problems = append(problems, "ENGINE_MAX_CONCURRENCY must be >= 0")
	}
	if c.Files.MaxUploadBytes <= 0 {
		problems = append(problems, "MAX_UPLOAD_BYTES must be positive")
	}
	if c.Cleanup.Delay < 0 {
		problems = append(problems, "CLEANUP_DELAY must be >= 0")
	}
	if c.Cleanup.MaxAge <= 0 {
		problems = append(problems, "CLEANUP_MAX_AGE must be positive")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be >= 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
