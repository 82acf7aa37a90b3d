// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Host          HostConfig          `yaml:"host"`
	Plugins       PluginsConfig       `yaml:"plugins"`
	Resources     map[string]bool     `yaml:"resources"`
	WebView       WebViewConfig       `yaml:"webview"`
	Transport     TransportConfig     `yaml:"transport"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HostConfig holds the host runtime and application identity.
type HostConfig struct {
	WorkerCount   int    `yaml:"worker_count"`
	QueueSize     int    `yaml:"queue_size"`
	PackageName   string `yaml:"package_name"`
	ApplicationID string `yaml:"application_id"`
}

// PluginsConfig holds per-plugin configuration.
type PluginsConfig struct {
	FacebookConnect PluginConfig `yaml:"facebook_connect"`
}

// PluginConfig toggles a built-in plugin. Plugins always register under
// their own service name.
type PluginConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WebViewConfig describes the web view exposed to plugins.
type WebViewConfig struct {
	ID    string `yaml:"id"`
	Ready bool   `yaml:"ready"`
}

// TransportConfig holds the script bridge endpoints.
type TransportConfig struct {
	WebSocketPath string `yaml:"websocket_path"`
	ExecPath      string `yaml:"exec_path"`
	PollPath      string `yaml:"poll_path"`
}

// ObservabilityConfig holds logging and metrics configuration.
type ObservabilityConfig struct {
	LogLevel    string    `yaml:"log_level"`
	LogFile     LogConfig `yaml:"log_file"`
	MetricsPath string    `yaml:"metrics_path"`
}

// LogConfig configures the optional rotating log file.
type LogConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Host: HostConfig{
			WorkerCount:   4,
			QueueSize:     64,
			PackageName:   "com.example.hybrid",
			ApplicationID: "",
		},
		Plugins: PluginsConfig{
			FacebookConnect: PluginConfig{
				Enabled: true,
			},
		},
		Resources: map[string]bool{
			"fb_hybrid_app_events": false,
		},
		WebView: WebViewConfig{
			ID:    "main",
			Ready: true,
		},
		Transport: TransportConfig{
			WebSocketPath: "/api/v1/bridge/ws",
			ExecPath:      "/api/v1/bridge/exec",
			PollPath:      "/api/v1/bridge/poll",
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			LogFile: LogConfig{
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			MetricsPath: "/metrics",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.Host.WorkerCount <= 0 {
		return fmt.Errorf("host worker_count must be positive")
	}

	if c.Host.QueueSize < 0 {
		return fmt.Errorf("host queue_size must not be negative")
	}

	for name, path := range map[string]string{
		"websocket_path": c.Transport.WebSocketPath,
		"exec_path":      c.Transport.ExecPath,
		"poll_path":      c.Transport.PollPath,
		"metrics_path":   c.Observability.MetricsPath,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with /: %q", name, path)
		}
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Observability.LogLevel)
	}

	return nil
}
