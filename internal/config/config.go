// ABOUTME: Configuration loading and parsing for mac-studio-mcp
// ABOUTME: Supports YAML or TOML files with environment variable expansion, env overrides and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults used when neither the config file nor the environment sets a value.
const (
	DefaultHTTPAddr      = "0.0.0.0:8080"
	DefaultFunnelURL     = "https://mac-studio-1556.tailfb6577.ts.net"
	DefaultRemoteTimeout = "60s"
	DefaultPiHost        = "192.168.25.225"
	DefaultPiUser        = "jstewartrr"
)

// Config represents the complete mac-studio-mcp configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Remote    RemoteConfig    `yaml:"remote" toml:"remote"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// RemoteConfig describes the command-execution endpoint tool calls are forwarded to
type RemoteConfig struct {
	BaseURL            string        `yaml:"base_url" toml:"base_url"`
	Timeout            time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw         string        `yaml:"timeout" toml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
	PiHost             string        `yaml:"pi_host" toml:"pi_host"`
	PiUser             string        `yaml:"pi_user" toml:"pi_user"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	Hostname   string `yaml:"hostname" toml:"hostname"`
	AuthKey    string `yaml:"auth_key" toml:"auth_key"`
	StateDir   string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral  bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS      bool   `yaml:"https" toml:"https"`             // Serve over tailnet HTTPS on :443
	Funnel   bool   `yaml:"funnel" toml:"funnel"`           // Serve publicly over Funnel on :443
	DialRemote bool   `yaml:"dial_remote" toml:"dial_remote"` // Reach the remote endpoint through the tailnet
}

// DatabaseConfig holds call-history database configuration.
// An empty path disables history.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: DefaultHTTPAddr},
		Remote: RemoteConfig{
			BaseURL:            DefaultFunnelURL,
			TimeoutRaw:         DefaultRemoteTimeout,
			InsecureSkipVerify: true,
			PiHost:             DefaultPiHost,
			PiUser:             DefaultPiUser,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML. Values
// not present in the file keep their defaults.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(cfg)
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return finish(Default())
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets the process environment win over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAC_FUNNEL_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.HTTPAddr = "0.0.0.0:" + v
	}
	if v := os.Getenv("MAC_MCP_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The listen address is required unless Tailscale provides the listener
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Tailscale.DialRemote && !c.Tailscale.Enabled {
		return fmt.Errorf("tailscale.dial_remote requires tailscale.enabled")
	}

	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote.base_url must be an http(s) URL, got %q", c.Remote.BaseURL)
	}

	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Remote.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Remote.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing remote.timeout %q: %w", cfg.Remote.TimeoutRaw, err)
		}
		cfg.Remote.Timeout = d
	}
	return nil
}

// Path returns the config file location.
// Priority: MAC_MCP_CONFIG env var > XDG_CONFIG_HOME/mac-studio-mcp/config.yaml > ~/.config/mac-studio-mcp/config.yaml
func Path() string {
	if envPath := os.Getenv("MAC_MCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "mac-studio-mcp", "config.yaml")
}
