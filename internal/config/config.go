// Package config loads the formdesk service configuration from a YAML file
// and FORMDESK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/goliatone/go-formdesk/pkg/upload"
)

// Visibility store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the full service configuration.
type Config struct {
	Env         string        `yaml:"env" env:"FORMDESK_ENV" env-default:"production"`
	HTTP        HTTP          `yaml:"http"`
	Backend     Backend       `yaml:"backend"`
	Definitions Definitions   `yaml:"definitions"`
	Tables      Tables        `yaml:"tables"`
	Upload      upload.Config `yaml:"upload"`
	Log         Log           `yaml:"log"`
}

// HTTP configures the admin surface.
type HTTP struct {
	Address        string        `yaml:"address" env:"FORMDESK_HTTP_ADDRESS" env-default:"localhost:8080"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"FORMDESK_HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"FORMDESK_HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"FORMDESK_HTTP_IDLE_TIMEOUT" env-default:"60s"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"FORMDESK_HTTP_ALLOWED_ORIGINS" env-separator:","`
}

// Backend points at the admin API the engines save to and list from.
type Backend struct {
	BaseURL string        `yaml:"base_url" env:"FORMDESK_BACKEND_URL"`
	Token   string        `yaml:"token" env:"FORMDESK_BACKEND_TOKEN"`
	Timeout time.Duration `yaml:"timeout" env:"FORMDESK_BACKEND_TIMEOUT" env-default:"15s"`
}

// Definitions locates the form and table documents. An empty Dir serves the
// bundled samples.
type Definitions struct {
	Dir string `yaml:"dir" env:"FORMDESK_DEFINITIONS_DIR"`
}

// Tables configures where column visibility is persisted.
type Tables struct {
	VisibilityStore string `yaml:"visibility_store" env:"FORMDESK_VISIBILITY_STORE" env-default:"memory"`
	FilePath        string `yaml:"file_path" env:"FORMDESK_VISIBILITY_FILE" env-default:"formdesk-columns.json"`
	RedisAddr       string `yaml:"redis_addr" env:"FORMDESK_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword   string `yaml:"redis_password" env:"FORMDESK_REDIS_PASSWORD"`
	RedisDB         int    `yaml:"redis_db" env:"FORMDESK_REDIS_DB"`
	RedisPrefix     string `yaml:"redis_prefix" env:"FORMDESK_REDIS_PREFIX" env-default:"formdesk:columns:"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level" env:"FORMDESK_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"FORMDESK_LOG_FORMAT"`
}

// Load reads path when set, then applies environment overrides and
// defaults. With an empty path only the environment is read.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if strings.TrimSpace(path) != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values cleanenv cannot express as tags.
func (c *Config) Validate() error {
	switch c.Tables.VisibilityStore {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("config: unknown visibility store %q", c.Tables.VisibilityStore)
	}
	if c.Tables.VisibilityStore == StoreFile && strings.TrimSpace(c.Tables.FilePath) == "" {
		return errors.New("config: file visibility store needs tables.file_path")
	}
	if c.Upload.Bucket != "" && c.Upload.Region == "" && c.Upload.Endpoint == "" {
		return errors.New("config: upload needs a region or an endpoint")
	}
	return nil
}

// Development reports whether the service runs in a development env.
func (c *Config) Development() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	}
	return false
}

// LogFormat returns the configured log encoding, defaulting to console in
// development and JSON otherwise.
func (c *Config) LogFormat() string {
	if c.Log.Format != "" {
		return c.Log.Format
	}
	if c.Development() {
		return "console"
	}
	return "json"
}

// Usage describes every environment variable, for --help output.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
