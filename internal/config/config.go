// Package config loads the optional YAML configuration file.
//
// Every value has a default, so the server runs without a file. Values are
// applied in order: defaults, file, environment, command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STELLAR_MUSICCAST_"

	// maxWindowSize is the most list items a device returns per request.
	maxWindowSize = 8
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Transport TransportConfig `yaml:"transport"`
	Browser   BrowserConfig   `yaml:"browser"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains the HTTP and Socket.IO listener settings.
type ServerConfig struct {
	Port            int    `yaml:"port"`
	StaticDir       string `yaml:"static_dir"`
	ReadTimeout     int    `yaml:"read_timeout"`     // seconds
	WriteTimeout    int    `yaml:"write_timeout"`    // seconds
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // seconds
	MaxConnections  int    `yaml:"max_connections"`
}

// DiscoveryConfig controls the SSDP and mDNS discoverers.
type DiscoveryConfig struct {
	SSDP      bool   `yaml:"ssdp"`
	MDNS      bool   `yaml:"mdns"`
	Timeout   int    `yaml:"timeout"` // seconds, per discoverer
	Service   string `yaml:"mdns_service"`
	Domain    string `yaml:"mdns_domain"`
	Interface string `yaml:"interface"`
	OnStartup bool   `yaml:"on_startup"`
}

// TransportConfig contains device API client settings.
type TransportConfig struct {
	Timeout     int    `yaml:"timeout"`    // seconds
	RateLimit   int    `yaml:"rate_limit"` // requests per second per device
	Language    string `yaml:"language"`
	Concurrency int    `yaml:"concurrency"`
}

// BrowserConfig contains media browser settings.
type BrowserConfig struct {
	WindowSize int    `yaml:"window_size"`
	Zone       string `yaml:"zone"`
}

// StorageConfig locates persisted user data.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig contains log settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file. An empty path yields the
// defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every value set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			ReadTimeout:     15,
			WriteTimeout:    15,
			ShutdownTimeout: 10,
			MaxConnections:  64,
		},
		Discovery: DiscoveryConfig{
			SSDP:      true,
			MDNS:      true,
			Timeout:   3,
			Service:   "_http._tcp",
			Domain:    "local.",
			OnStartup: true,
		},
		Transport: TransportConfig{
			Timeout:     5,
			RateLimit:   10,
			Language:    "en",
			Concurrency: 8,
		},
		Browser: BrowserConfig{
			WindowSize: 8,
			Zone:       "main",
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv(EnvPrefix + "STATIC_DIR"); v != "" {
		cfg.Server.StaticDir = v
	}
	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LANGUAGE"); v != "" {
		cfg.Transport.Language = v
	}
	if v := os.Getenv(EnvPrefix + "INTERFACE"); v != "" {
		cfg.Discovery.Interface = v
	}
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "server timeouts must be positive")
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, "server.max_connections must not be negative")
	}
	if c.Discovery.Timeout <= 0 {
		errs = append(errs, "discovery.timeout must be positive")
	}
	if c.Transport.Timeout <= 0 {
		errs = append(errs, "transport.timeout must be positive")
	}
	if c.Transport.RateLimit <= 0 {
		errs = append(errs, "transport.rate_limit must be positive")
	}
	if c.Transport.Concurrency <= 0 {
		errs = append(errs, "transport.concurrency must be positive")
	}
	if c.Browser.WindowSize <= 0 || c.Browser.WindowSize > maxWindowSize {
		errs = append(errs, fmt.Sprintf("browser.window_size must be between 1 and %d", maxWindowSize))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, "storage.data_dir is required")
	}
	if !logLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level %q is not a known level", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// DatabasePath returns the user data SQLite file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "userdata.db")
}

func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeout) * time.Second
}

func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}

func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

func (c *Config) GetDiscoveryTimeout() time.Duration {
	return time.Duration(c.Discovery.Timeout) * time.Second
}

func (c *Config) GetTransportTimeout() time.Duration {
	return time.Duration(c.Transport.Timeout) * time.Second
}
