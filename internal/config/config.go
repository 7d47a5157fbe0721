// Package config loads and validates run configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix namespaces environment overrides, e.g. SECTXT_CRAWLER_CONCURRENCY.
const EnvPrefix = "SECTXT"

// Config captures every knob loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Source   SourceConfig   `mapstructure:"source"`
	Output   OutputConfig   `mapstructure:"output"`
	Progress ProgressConfig `mapstructure:"progress"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs dispatch.
type CrawlerConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	DomainsPath string `mapstructure:"domains_path"`
	UserAgent   string `mapstructure:"user_agent"`
}

// HTTPConfig bounds each security.txt request.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// MaxBodyBytes caps a response body; 0 reads it whole. A longer body is a
	// failed fetch, never a truncated file.
	MaxBodyBytes int `mapstructure:"max_body_bytes"`
	// RequestsPerSecond caps the global request rate; 0 disables the cap.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RateBurst         int     `mapstructure:"rate_burst"`
}

// SourceConfig locates the fallback domain list archive.
type SourceConfig struct {
	RemoteURL      string `mapstructure:"remote_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// OutputConfig controls where bodies are written.
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	DryRun bool   `mapstructure:"dry_run"`
}

// ProgressConfig toggles the terminal bar and sizes the event buffer.
type ProgressConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

// ServerConfig enables the status server when Addr is set.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file, the environment, and
// any flags already bound to v. A nil v uses a fresh Viper instance. With an
// empty path, ./securitytxt.yaml is read if present.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("securitytxt")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.concurrency", 200)
	v.SetDefault("crawler.domains_path", "1m.csv")
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_body_bytes", 0)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.rate_burst", 1)
	v.SetDefault("source.remote_url", "http://s3.amazonaws.com/alexa-static/top-1m.csv.zip")
	v.SetDefault("source.timeout_seconds", 300)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.dry_run", false)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("server.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if strings.TrimSpace(c.Crawler.DomainsPath) == "" {
		return fmt.Errorf("crawler.domains_path is required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.HTTP.RateBurst < 0 {
		return fmt.Errorf("http.rate_burst must be >= 0")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be > 0")
	}
	if !c.Output.DryRun && strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir is required unless output.dry_run is set")
	}
	if c.Progress.BufferSize < 0 {
		return fmt.Errorf("progress.buffer_size must be >= 0")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// FetchTimeout is the per-request budget for security.txt fetches.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// SourceTimeout is the budget for downloading the domain list archive.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}
