package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/trickle/internal/downloader"
	"github.com/ligustah/trickle/internal/progress"
)

// Config defines configuration for the trickle CLI.
type Config struct {
	URL              string            `yaml:"url"`
	Output           string            `yaml:"output"`
	Name             string            `yaml:"name"`
	Token            string            `yaml:"token"`
	Headers          map[string]string `yaml:"headers"`
	ChunkSize        int64             `yaml:"chunk_size"`
	MaxRetries       int               `yaml:"max_retries"`
	Streaming        bool              `yaml:"streaming"`
	Overwrite        bool              `yaml:"overwrite"`
	Progress         bool              `yaml:"progress"`
	ProgressInterval time.Duration     `yaml:"progress_interval"`
	Retry            RetryConfig       `yaml:"retry"`
	Log              LogConfig         `yaml:"log"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Backoff time.Duration `yaml:"backoff"`
}

// LogConfig defines logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		ChunkSize:        downloader.DefaultChunkSize,
		MaxRetries:       5,
		Streaming:        true,
		ProgressInterval: 500 * time.Millisecond,
		Retry: RetryConfig{
			Backoff: downloader.DefaultRetryBackoff,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	URL              string            `yaml:"url"`
	Output           string            `yaml:"output"`
	Name             string            `yaml:"name"`
	Token            string            `yaml:"token"`
	Headers          map[string]string `yaml:"headers"`
	ChunkSize        string            `yaml:"chunk_size"`
	MaxRetries       int               `yaml:"max_retries"`
	Streaming        *bool             `yaml:"streaming"`
	Overwrite        bool              `yaml:"overwrite"`
	Progress         bool              `yaml:"progress"`
	ProgressInterval string            `yaml:"progress_interval"`
	Retry            yamlRetryConfig   `yaml:"retry"`
	Log              LogConfig         `yaml:"log"`
}

type yamlRetryConfig struct {
	Backoff string `yaml:"backoff"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.URL != "" {
		cfg.URL = yc.URL
	}
	if yc.Output != "" {
		cfg.Output = yc.Output
	}
	cfg.Name = yc.Name
	cfg.Token = yc.Token
	if len(yc.Headers) > 0 {
		cfg.Headers = yc.Headers
	}
	if yc.ChunkSize != "" {
		size, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	if yc.MaxRetries != 0 {
		cfg.MaxRetries = yc.MaxRetries
	}
	if yc.Streaming != nil {
		cfg.Streaming = *yc.Streaming
	}
	cfg.Overwrite = yc.Overwrite
	cfg.Progress = yc.Progress
	if yc.ProgressInterval != "" {
		d, err := time.ParseDuration(yc.ProgressInterval)
		if err != nil {
			return Config{}, fmt.Errorf("parse progress_interval: %w", err)
		}
		cfg.ProgressInterval = d
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Log.Level != "" {
		cfg.Log.Level = yc.Log.Level
	}
	if yc.Log.Format != "" {
		cfg.Log.Format = yc.Log.Format
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TRICKLE_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("TRICKLE_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("TRICKLE_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("TRICKLE_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("TRICKLE_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("TRICKLE_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse TRICKLE_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = size
	}
	if v := os.Getenv("TRICKLE_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TRICKLE_MAX_RETRIES: %w", err)
		}
		c.MaxRetries = n
	}
	if v := os.Getenv("TRICKLE_STREAMING"); v != "" {
		c.Streaming = v == "true" || v == "1"
	}
	if v := os.Getenv("TRICKLE_OVERWRITE"); v != "" {
		c.Overwrite = v == "true" || v == "1"
	}
	if v := os.Getenv("TRICKLE_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("TRICKLE_PROGRESS_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TRICKLE_PROGRESS_INTERVAL: %w", err)
		}
		c.ProgressInterval = d
	}
	if v := os.Getenv("TRICKLE_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TRICKLE_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("TRICKLE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TRICKLE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("config: URL must be http or https: %s", c.URL)
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("config: max_retries must not be negative")
	}
	if c.ProgressInterval < 0 {
		return errors.New("config: progress_interval must not be negative")
	}
	if c.Retry.Backoff < 0 {
		return errors.New("config: retry.backoff must not be negative")
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("config: log.level: %w", err)
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json: %s", c.Log.Format)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored. Streaming is only ever switched off.
func (c Config) Merge(override Config) Config {
	if override.URL != "" {
		c.URL = override.URL
	}
	if override.Output != "" {
		c.Output = override.Output
	}
	if override.Name != "" {
		c.Name = override.Name
	}
	if override.Token != "" {
		c.Token = override.Token
	}
	if len(override.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(override.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range override.Headers {
			headers[k] = v
		}
		c.Headers = headers
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.MaxRetries != 0 {
		c.MaxRetries = override.MaxRetries
	}
	if override.Overwrite {
		c.Overwrite = override.Overwrite
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.ProgressInterval != 0 {
		c.ProgressInterval = override.ProgressInterval
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Log.Level != "" {
		c.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		c.Log.Format = override.Log.Format
	}
	return c
}

// DownloaderConfig converts c into a downloader configuration. Callbacks
// and the logger are left for the caller to set.
func (c Config) DownloaderConfig() downloader.Config {
	var headers map[string]string
	if len(c.Headers) > 0 {
		headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
	}

	return downloader.Config{
		URL:              c.URL,
		Name:             c.Name,
		Token:            c.Token,
		Headers:          headers,
		ChunkSize:        c.ChunkSize,
		MaxRetries:       c.MaxRetries,
		RetryBackoff:     c.Retry.Backoff,
		ProgressInterval: c.ProgressInterval,
		DisableStreaming: !c.Streaming,
	}
}

// ParseHeader splits a "Key: Value" header argument.
func ParseHeader(s string) (key, value string, err error) {
	key, value, ok := strings.Cut(s, ":")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("config: invalid header %q, want \"Key: Value\"", s)
	}
	return key, strings.TrimSpace(value), nil
}
