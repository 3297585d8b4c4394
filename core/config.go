package core

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shrek82/jbulk/logger"
)

// Config is the file form of Options plus logging and slow-batch settings.
type Config struct {
	Driver          string        `yaml:"driver" validate:"required,oneof=mysql postgres sqlite3 sqlserver"`
	DSN             string        `yaml:"dsn" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`

	BatchSize        int  `yaml:"batch_size" validate:"gte=0"`
	LocalInfile      bool `yaml:"local_infile"`
	DisableCopy      bool `yaml:"disable_copy"`
	ValidateEntities bool `yaml:"validate_entities"`

	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=silent off error warn warning info debug"`
		Format string `yaml:"format" validate:"omitempty,oneof=text json"`
	} `yaml:"log"`

	SlowThreshold time.Duration `yaml:"slow_threshold" validate:"gte=0"`
	SlowLogPath   string        `yaml:"slow_log_path"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML config data.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config's validate tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Logger builds the logger described by the log section.
func (c *Config) Logger() (logger.Logger, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	l := logger.New()
	l.SetLevel(level)
	if c.Log.Format == string(logger.LogFormatJSON) {
		l.SetFormat(logger.LogFormatJSON)
	}
	return l, nil
}

// Options converts the config to DB options.
func (c *Config) Options() (*Options, error) {
	l, err := c.Logger()
	if err != nil {
		return nil, err
	}
	return &Options{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		BatchSize:       c.BatchSize,
		LocalInfile:     c.LocalInfile,
		DisableCopy:     c.DisableCopy,
		Validate:        c.ValidateEntities,
		Logger:          l,
	}, nil
}

// OpenConfig opens a DB from a validated config.
func OpenConfig(c *Config) (*DB, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	return Open(c.Driver, c.DSN, opts)
}
