package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wwyf/eRPC/internal/nexus"
)

// Config represents the complete daemon configuration
type Config struct {
	Nexus   NexusConfig   `yaml:"nexus"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// NexusConfig contains the session management channel and worker pool settings
type NexusConfig struct {
	MgmtUDPPort    int     `yaml:"mgmt_udp_port"`
	BindAddress    string  `yaml:"bind_address"`
	NumBgWorkers   int     `yaml:"num_bg_workers"`
	UDPDropProb    float64 `yaml:"udp_drop_prob"`
	RecvBufferSize int     `yaml:"recv_buffer_size"`
}

// HTTPConfig contains the operational HTTP server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate checks every section of the configuration
func (c *Config) Validate() error {
	if err := c.Nexus.Validate(); err != nil {
		return fmt.Errorf("nexus config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the session management channel settings
func (c *NexusConfig) Validate() error {
	if c.MgmtUDPPort < 1 || c.MgmtUDPPort > 65535 {
		return fmt.Errorf("mgmt_udp_port must be between 1 and 65535, got %d", c.MgmtUDPPort)
	}
	if c.NumBgWorkers < 0 || c.NumBgWorkers > nexus.MaxBgWorkers {
		return fmt.Errorf("num_bg_workers must be between 0 and %d, got %d", nexus.MaxBgWorkers, c.NumBgWorkers)
	}
	if c.UDPDropProb < 0 || c.UDPDropProb > nexus.MaxUDPDropProb {
		return fmt.Errorf("udp_drop_prob must be between 0 and %v, got %v", nexus.MaxUDPDropProb, c.UDPDropProb)
	}
	if c.RecvBufferSize < 0 {
		return fmt.Errorf("recv_buffer_size must not be negative, got %d", c.RecvBufferSize)
	}
	return nil
}

// Validate checks the HTTP server settings
func (c *HTTPConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Validate checks the logging settings
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", c.Format)
	}
	return nil
}

// NexusConfig converts the file section into the nexus construction
// parameters.
func (c *Config) NexusConfig() nexus.Config {
	return nexus.Config{
		MgmtUDPPort:    c.Nexus.MgmtUDPPort,
		BindAddress:    c.Nexus.BindAddress,
		NumBgWorkers:   c.Nexus.NumBgWorkers,
		UDPDropProb:    c.Nexus.UDPDropProb,
		RecvBufferSize: c.Nexus.RecvBufferSize,
	}
}
