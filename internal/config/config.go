package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParserConfig holds parse pipeline configuration
type ParserConfig struct {
	// Workers is the number of input files parsed concurrently.
	// 1 means strictly sequential processing.
	Workers int `yaml:"workers"`
	// MaxLineBytes bounds the scanner's line buffer.
	MaxLineBytes int `yaml:"max_line_bytes"`
}

// OutputConfig holds report output configuration
type OutputConfig struct {
	// Path is the report destination; "-" means stdout.
	Path   string `yaml:"path"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for the tool
type Config struct {
	Parser  ParserConfig  `yaml:"parser"`
	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if not specified
	setDefaults(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Parser.Workers == 0 {
		cfg.Parser.Workers = 1
	}
	if cfg.Parser.MaxLineBytes == 0 {
		cfg.Parser.MaxLineBytes = 1 << 20
	}
	if cfg.Output.Path == "" {
		cfg.Output.Path = "-"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Parser.Workers < 1 {
		return fmt.Errorf("parser.workers must be at least 1")
	}
	if c.Parser.MaxLineBytes < 1024 {
		return fmt.Errorf("parser.max_line_bytes must be at least 1024")
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be \"json\" or \"console\"")
	}
	return nil
}
