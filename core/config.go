package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes a worker pool and its ambient logging, as read from YAML:
//
//	pool_id: flows
//	workers: 4
//	shutdown_timeout: 5s
//	log_level: info
type Config struct {
	PoolID          string        `yaml:"pool_id"`
	Workers         int           `yaml:"workers"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when a field is left out.
func DefaultConfig() Config {
	return Config{
		PoolID:          "tflow-pool",
		Workers:         4,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}

// LoadConfig decodes YAML from r on top of DefaultConfig. Unknown keys are an error.
// An empty document yields the defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads the YAML file at path, see LoadConfig.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.PoolID == "" {
		return errors.New("config: pool_id must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("config: shutdown_timeout must not be negative, got %v", c.ShutdownTimeout)
	}
	if c.LogLevel != "off" {
		if _, err := ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// Logger builds the logger selected by LogLevel; "off" discards everything.
func (c Config) Logger() Logger {
	if c.LogLevel == "off" {
		return NewNoOpLogger()
	}
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = LevelInfo
	}
	return NewDefaultLoggerWithLevel(level)
}

// SchedulerConfig returns handlers that report through c.Logger().
func (c Config) SchedulerConfig(metrics Metrics) *TaskSchedulerConfig {
	logger := c.Logger()
	return &TaskSchedulerConfig{
		PanicHandler:        &DefaultPanicHandler{Logger: logger},
		Metrics:             metrics,
		RejectedTaskHandler: &DefaultRejectedTaskHandler{Logger: logger},
	}
}
