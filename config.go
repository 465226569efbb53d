package initz

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the profiler settings.
type Config struct {
	ReportLimit   int    `yaml:"report_limit"`
	LogLevel      string `yaml:"log_level"`
	JournalBuffer int    `yaml:"journal_buffer"`
	Workers       int    `yaml:"workers"`
	QueueSize     int    `yaml:"queue_size"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		ReportLimit:   DefaultReportLimit,
		LogLevel:      "info",
		JournalBuffer: 4096,
		Workers:       2,
		QueueSize:     16,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings for values the profiler cannot use.
func (c Config) Validate() error {
	var errs []error
	if c.ReportLimit <= 0 {
		errs = append(errs, errors.New("report_limit must be > 0"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.JournalBuffer <= 0 {
		errs = append(errs, errors.New("journal_buffer must be > 0"))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must be >= 0"))
	}
	if c.Workers > 0 && c.QueueSize <= 0 {
		errs = append(errs, errors.New("queue_size must be > 0 when workers are enabled"))
	}
	return errors.Join(errs...)
}

// Logger builds a logrus logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// Options converts the settings into profiler options.
func (c Config) Options() []Option {
	return []Option{
		WithReportLimit(c.ReportLimit),
		WithLogger(c.Logger()),
	}
}
