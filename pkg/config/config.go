// Package config holds application configuration and logger construction.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	LogLevel        string        `yaml:"log_level" default:"info"`
	ScanTimeout     time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectionSlots int           `yaml:"connection_slots" default:"2"`
	DiagnosticsAddr string        `yaml:"diagnostics_addr" default:"127.0.0.1:8099"`
	OutputFormat    string        `yaml:"output_format" default:"table"` // table, json
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	cfg := new(Config)
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file on top of the defaults. Fields absent from
// the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// UnmarshalYAML decodes durations from strings like "10s" since yaml has no
// native duration type. Only fields present in the document are overwritten.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		LogLevel        string `yaml:"log_level"`
		ScanTimeout     string `yaml:"scan_timeout"`
		ConnectionSlots *int   `yaml:"connection_slots"`
		DiagnosticsAddr string `yaml:"diagnostics_addr"`
		OutputFormat    string `yaml:"output_format"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if raw.ScanTimeout != "" {
		d, err := time.ParseDuration(raw.ScanTimeout)
		if err != nil {
			return fmt.Errorf("scan_timeout: %w", err)
		}
		c.ScanTimeout = d
	}
	if raw.ConnectionSlots != nil {
		c.ConnectionSlots = *raw.ConnectionSlots
	}
	if raw.DiagnosticsAddr != "" {
		c.DiagnosticsAddr = raw.DiagnosticsAddr
	}
	if raw.OutputFormat != "" {
		c.OutputFormat = raw.OutputFormat
	}
	return nil
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}
