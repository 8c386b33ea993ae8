package haystack

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Config describes a Tracer.
type Config struct {
	ServiceName string          `yaml:"service_name"`
	LogLevel    string          `yaml:"log_level"`
	Propagation PropagationKeys `yaml:"propagation"`
	Metrics     MetricsConfig   `yaml:"metrics"`

	// IDPoolSize is how many ids are generated ahead of use.
	// Zero means 100 per CPU.
	IDPoolSize int `yaml:"id_pool_size"`

	// Workers and QueueSize size the async handler pool.
	// Zero workers runs async handlers on their own goroutines.
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// MetricsConfig controls the tracer's Prometheus instruments.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		ServiceName: "unknown-service",
		LogLevel:    LogLevelInfo,
		Propagation: DefaultPropagationKeys(),
		Metrics: MetricsConfig{
			Namespace: "haystack",
		},
		QueueSize: 1024,
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Propagation = cfg.Propagation.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first problem found in c.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	switch c.LogLevel {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.IDPoolSize < 0 {
		return fmt.Errorf("id_pool_size must be >= 0, got %d", c.IDPoolSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Workers > 0 && c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be > 0 when workers are set, got %d", c.QueueSize)
	}
	return nil
}

// NewFromConfig builds a Tracer from cfg. Options are applied after the
// configured ones, so they can override the logger or clock. A logger is
// built from cfg only when no WithLogger option supplies one. With metrics
// enabled and no WithMetrics option, instruments are registered with the
// WithRegisterer registry, or prometheus.DefaultRegisterer.
func NewFromConfig(cfg Config, opts ...Option) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := []Option{
		WithPropagation(cfg.Propagation),
		WithIDPoolSize(cfg.IDPoolSize),
	}
	t := New(cfg.ServiceName, append(base, opts...)...)

	if !t.loggerSet {
		logger, err := NewLogger(cfg.LogLevel, cfg.ServiceName)
		if err != nil {
			return nil, err
		}
		t.logger = logger
	}

	if cfg.Metrics.Enabled && t.metrics == nil {
		reg := t.registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		m := NewMetrics(cfg.Metrics.Namespace, cfg.ServiceName)
		if err := m.Register(reg); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		t.metrics = m
	}

	if cfg.Workers > 0 {
		if err := t.EnableWorkerPool(cfg.Workers, cfg.QueueSize); err != nil {
			t.Close()
			return nil, fmt.Errorf("enable worker pool: %w", err)
		}
	}
	return t, nil
}
