package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat     string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile       string `envconfig:"LOG_FILE"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	GotenbergURL string        `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`
	ProposalTTL  time.Duration `envconfig:"PROPOSAL_TTL" default:"168h"`

	TwinFPS             int           `envconfig:"TWIN_FPS" default:"30"`
	TwinMaxFlows        int           `envconfig:"TWIN_MAX_FLOWS" default:"24"`
	TwinMaxRuns         int           `envconfig:"TWIN_MAX_RUNS" default:"8"`
	TwinDefaultDuration time.Duration `envconfig:"TWIN_DEFAULT_DURATION" default:"10s"`

	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR"`
}

// LoadConfig reads configuration from environment variables. A .env file in
// the working directory is loaded first when present; real environment
// variables take precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SessionSecret) == "" {
		errs = append(errs, errors.New("session secret must be provided"))
	}
	if strings.TrimSpace(c.CSRFSecret) == "" {
		errs = append(errs, errors.New("csrf secret must be provided"))
	}
	if c.TwinFPS <= 0 {
		errs = append(errs, errors.New("TWIN_FPS must be positive"))
	}
	if c.TwinMaxFlows <= 0 {
		errs = append(errs, errors.New("TWIN_MAX_FLOWS must be positive"))
	}
	if c.TwinMaxRuns <= 0 {
		errs = append(errs, errors.New("TWIN_MAX_RUNS must be positive"))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}
	if c.ProposalTTL <= 0 {
		errs = append(errs, errors.New("PROPOSAL_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
