// Package config loads the hub configuration file. Environment
// variables in the file body are expanded before parsing, so secrets
// and host-specific paths can stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/toolhub/internal/budget"
	"github.com/haasonsaas/toolhub/internal/discovery"
	"github.com/haasonsaas/toolhub/internal/hub"
	"github.com/haasonsaas/toolhub/internal/observability"
	"github.com/haasonsaas/toolhub/internal/policy"
	"github.com/haasonsaas/toolhub/pkg/models"
)

// Config is the on-disk configuration for the tool hub.
type Config struct {
	Roots   []RootConfig  `yaml:"roots"`
	Policy  policy.Config `yaml:"policy"`
	Budget  budget.Config `yaml:"budget"`
	Tools   ToolsConfig   `yaml:"tools"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Watch   WatchConfig   `yaml:"watch"`

	// DefaultPermissions are granted to invocations that do not carry
	// their own capability set.
	DefaultPermissions []string `yaml:"default_permissions"`
}

// RootConfig names one discovery root and the namespace its tools get.
type RootConfig struct {
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// ToolsConfig tunes the built-in tool limits.
type ToolsConfig struct {
	MaxFileBytes int64         `yaml:"max_file_bytes"`
	MaxHTTPBytes int64         `yaml:"max_http_bytes"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
}

// JobsConfig selects the async job store and its retention.
type JobsConfig struct {
	// DatabaseURL selects the Postgres store; empty keeps jobs in memory.
	DatabaseURL   string        `yaml:"database_url"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// RedactPatterns are extra regexes scrubbed from log output.
	RedactPatterns []string `yaml:"redact_patterns"`
}

type TracingConfig struct {
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given:
// no discovery roots, in-memory jobs, JSON logging.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Budget.DefaultTimeoutMs == 0 {
		cfg.Budget.DefaultTimeoutMs = budget.DefaultConfig().DefaultTimeoutMs
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "toolhub"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = discovery.DefaultDebounce
	}
	if cfg.DefaultPermissions == nil {
		cfg.DefaultPermissions = []string{
			string(models.CapReadFS),
			string(models.CapReadWeb),
			string(models.CapWorkflow),
		}
	}
}

// Validate rejects configurations the hub cannot start with.
func (c *Config) Validate() error {
	for i, root := range c.Roots {
		if root.Path == "" {
			return fmt.Errorf("roots[%d]: path is required", i)
		}
		if root.Namespace == "" {
			return fmt.Errorf("roots[%d] (%s): namespace is required", i, root.Path)
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not one of json, text", c.Logging.Format)
	}
	for _, p := range c.DefaultPermissions {
		if !models.Capability(p).Valid() {
			return fmt.Errorf("default_permissions: unknown capability %q", p)
		}
	}
	return nil
}

// HubOptions converts the file configuration into hub options.
func (c *Config) HubOptions() hub.Options {
	roots := make([]discovery.Root, 0, len(c.Roots))
	for _, r := range c.Roots {
		roots = append(roots, discovery.Root{Path: r.Path, Namespace: r.Namespace})
	}
	permissions := make([]models.Capability, 0, len(c.DefaultPermissions))
	for _, p := range c.DefaultPermissions {
		permissions = append(permissions, models.Capability(p))
	}

	return hub.Options{
		Roots:            roots,
		Policy:           c.Policy,
		Budget:           c.Budget,
		MaxFileBytes:     c.Tools.MaxFileBytes,
		MaxHTTPBytes:     c.Tools.MaxHTTPBytes,
		HTTPTimeout:      c.Tools.HTTPTimeout,
		JobStoreDSN:      c.Jobs.DatabaseURL,
		JobTTL:           c.Jobs.TTL,
		JobSweepInterval: c.Jobs.SweepInterval,
		Log: observability.LogConfig{
			Level:          c.Logging.Level,
			Format:         c.Logging.Format,
			RedactPatterns: c.Logging.RedactPatterns,
		},
		Trace: observability.TraceConfig{
			ServiceName:    c.Tracing.ServiceName,
			Endpoint:       c.Tracing.Endpoint,
			EnableInsecure: c.Tracing.Insecure,
		},
		WatchDebounce:      c.Watch.Debounce,
		DefaultPermissions: permissions,
	}
}
