// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, env overrides and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearOverrides blanks the variables applyEnvOverrides reads so the host
// environment cannot leak into a test.
func clearOverrides(t *testing.T) {
	t.Helper()
	for _, name := range []string{"MAC_FUNNEL_URL", "PORT", "MAC_MCP_DB_PATH"} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	clearOverrides(t)

	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "127.0.0.1:9090"

remote:
  base_url: "https://studio.example.ts.net"
  timeout: "45s"
  insecure_skip_verify: false
  pi_host: "10.0.0.5"
  pi_user: "pi"

database:
  path: "./history.db"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9090")
	}
	if cfg.Remote.BaseURL != "https://studio.example.ts.net" {
		t.Errorf("Remote.BaseURL = %q, want %q", cfg.Remote.BaseURL, "https://studio.example.ts.net")
	}
	if cfg.Remote.Timeout != 45*time.Second {
		t.Errorf("Remote.Timeout = %v, want %v", cfg.Remote.Timeout, 45*time.Second)
	}
	if cfg.Remote.InsecureSkipVerify {
		t.Error("Remote.InsecureSkipVerify = true, want false")
	}
	if cfg.Remote.PiHost != "10.0.0.5" {
		t.Errorf("Remote.PiHost = %q, want %q", cfg.Remote.PiHost, "10.0.0.5")
	}
	if cfg.Remote.PiUser != "pi" {
		t.Errorf("Remote.PiUser = %q, want %q", cfg.Remote.PiUser, "pi")
	}
	if cfg.Database.Path != "./history.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./history.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	if cfg.Tailscale.Enabled {
		t.Error("Tailscale.Enabled = true, want false")
	}
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	clearOverrides(t)

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "warn"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Remote.BaseURL != DefaultFunnelURL {
		t.Errorf("Remote.BaseURL = %q, want %q", cfg.Remote.BaseURL, DefaultFunnelURL)
	}
	if cfg.Remote.Timeout != 60*time.Second {
		t.Errorf("Remote.Timeout = %v, want %v", cfg.Remote.Timeout, 60*time.Second)
	}
	if !cfg.Remote.InsecureSkipVerify {
		t.Error("Remote.InsecureSkipVerify = false, want true")
	}
	if cfg.Remote.PiHost != DefaultPiHost || cfg.Remote.PiUser != DefaultPiUser {
		t.Errorf("Remote pi = %s@%s, want %s@%s", cfg.Remote.PiUser, cfg.Remote.PiHost, DefaultPiUser, DefaultPiHost)
	}
	if cfg.Database.Path != "" {
		t.Errorf("Database.Path = %q, want empty", cfg.Database.Path)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
}

func TestLoad_TOML(t *testing.T) {
	clearOverrides(t)

	configPath := writeConfig(t, "config.toml", `
[server]
http_addr = "0.0.0.0:7000"

[remote]
base_url = "http://localhost:5000"
timeout = "2m"

[tailscale]
enabled = true
hostname = "mac-mcp"
funnel = true
dial_remote = true
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:7000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:7000")
	}
	if cfg.Remote.BaseURL != "http://localhost:5000" {
		t.Errorf("Remote.BaseURL = %q, want %q", cfg.Remote.BaseURL, "http://localhost:5000")
	}
	if cfg.Remote.Timeout != 2*time.Minute {
		t.Errorf("Remote.Timeout = %v, want %v", cfg.Remote.Timeout, 2*time.Minute)
	}
	if !cfg.Tailscale.Enabled || !cfg.Tailscale.Funnel || !cfg.Tailscale.DialRemote {
		t.Errorf("Tailscale = %+v, want enabled with funnel and dial_remote", cfg.Tailscale)
	}
	if cfg.Tailscale.Hostname != "mac-mcp" {
		t.Errorf("Tailscale.Hostname = %q, want %q", cfg.Tailscale.Hostname, "mac-mcp")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	clearOverrides(t)
	t.Setenv("TEST_TS_AUTH_KEY", "tskey-from-env")
	t.Setenv("TEST_REMOTE_HOST", "studio.internal")

	configPath := writeConfig(t, "config.yaml", `
remote:
  base_url: "https://${TEST_REMOTE_HOST}"

tailscale:
  enabled: true
  hostname: "mac-mcp"
  auth_key: "${TEST_TS_AUTH_KEY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Remote.BaseURL != "https://studio.internal" {
		t.Errorf("Remote.BaseURL = %q, want %q", cfg.Remote.BaseURL, "https://studio.internal")
	}
	if cfg.Tailscale.AuthKey != "tskey-from-env" {
		t.Errorf("Tailscale.AuthKey = %q, want %q", cfg.Tailscale.AuthKey, "tskey-from-env")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	clearOverrides(t)

	configPath := writeConfig(t, "config.yaml", `
database:
  path: "${NONEXISTENT_VAR_FOR_TEST_12345}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Unset env var should expand to empty string
	if cfg.Database.Path != "" {
		t.Errorf("Database.Path = %q, want empty string for unset env var", cfg.Database.Path)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MAC_FUNNEL_URL", "https://override.example.net")
	t.Setenv("PORT", "3000")
	t.Setenv("MAC_MCP_DB_PATH", "/tmp/override.db")

	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "127.0.0.1:9090"
remote:
  base_url: "https://file.example.net"
database:
  path: "./file.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Remote.BaseURL != "https://override.example.net" {
		t.Errorf("Remote.BaseURL = %q, want %q", cfg.Remote.BaseURL, "https://override.example.net")
	}
	if cfg.Server.HTTPAddr != "0.0.0.0:3000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:3000")
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/override.db")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	clearOverrides(t)
	t.Setenv("PORT", "4321")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:4321" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:4321")
	}
	if cfg.Remote.Timeout != 60*time.Second {
		t.Errorf("Remote.Timeout = %v, want %v", cfg.Remote.Timeout, 60*time.Second)
	}
}

func TestLoadOrDefault_InvalidFileStillFails(t *testing.T) {
	clearOverrides(t)
	configPath := writeConfig(t, "config.yaml", "remote: [unclosed")

	if _, err := LoadOrDefault(configPath); err == nil {
		t.Error("LoadOrDefault() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearOverrides(t)
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: [invalid yaml
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	clearOverrides(t)
	configPath := writeConfig(t, "config.toml", "[server\nhttp_addr = ")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid TOML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearOverrides(t)
	configPath := writeConfig(t, "config.yaml", `
remote:
  timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "remote.timeout") {
		t.Errorf("error %q should name remote.timeout", err.Error())
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_A", "value_a")
	t.Setenv("TEST_VAR_B", "value_b")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single var",
			input:    "prefix_${TEST_VAR_A}_suffix",
			expected: "prefix_value_a_suffix",
		},
		{
			name:     "multiple vars",
			input:    "${TEST_VAR_A} and ${TEST_VAR_B}",
			expected: "value_a and value_b",
		},
		{
			name:     "no vars",
			input:    "plain text",
			expected: "plain text",
		},
		{
			name:     "unset var",
			input:    "${UNSET_VAR_12345}",
			expected: "",
		},
		{
			name:     "bare dollar untouched",
			input:    "$TEST_VAR_A",
			expected: "$TEST_VAR_A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		wantErr       bool
		wantErrSubstr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:          "missing http_addr without tailscale",
			mutate:        func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr:       true,
			wantErrSubstr: "server.http_addr",
		},
		{
			name: "missing http_addr with tailscale",
			mutate: func(c *Config) {
				c.Server.HTTPAddr = ""
				c.Tailscale.Enabled = true
				c.Tailscale.Hostname = "mac-mcp"
			},
		},
		{
			name:          "tailscale without hostname",
			mutate:        func(c *Config) { c.Tailscale.Enabled = true },
			wantErr:       true,
			wantErrSubstr: "tailscale.hostname",
		},
		{
			name:          "dial_remote without tailscale",
			mutate:        func(c *Config) { c.Tailscale.DialRemote = true },
			wantErr:       true,
			wantErrSubstr: "tailscale.dial_remote",
		},
		{
			name:          "missing base_url",
			mutate:        func(c *Config) { c.Remote.BaseURL = "" },
			wantErr:       true,
			wantErrSubstr: "remote.base_url is required",
		},
		{
			name:          "base_url without scheme",
			mutate:        func(c *Config) { c.Remote.BaseURL = "studio.example.net" },
			wantErr:       true,
			wantErrSubstr: "http(s) URL",
		},
		{
			name:          "base_url with other scheme",
			mutate:        func(c *Config) { c.Remote.BaseURL = "ftp://studio.example.net" },
			wantErr:       true,
			wantErrSubstr: "http(s) URL",
		},
		{
			name:          "negative timeout",
			mutate:        func(c *Config) { c.Remote.Timeout = -time.Second },
			wantErr:       true,
			wantErrSubstr: "remote.timeout",
		},
		{
			name:          "unknown log format",
			mutate:        func(c *Config) { c.Logging.Format = "xml" },
			wantErr:       true,
			wantErrSubstr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && tt.wantErrSubstr != "" {
				if !strings.Contains(err.Error(), tt.wantErrSubstr) {
					t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.wantErrSubstr)
				}
			}
		})
	}
}

func TestPath(t *testing.T) {
	t.Run("explicit env var", func(t *testing.T) {
		t.Setenv("MAC_MCP_CONFIG", "/etc/mac-mcp.toml")
		if got := Path(); got != "/etc/mac-mcp.toml" {
			t.Errorf("Path() = %q, want %q", got, "/etc/mac-mcp.toml")
		}
	})

	t.Run("xdg config home", func(t *testing.T) {
		t.Setenv("MAC_MCP_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		want := filepath.Join("/xdg", "mac-studio-mcp", "config.yaml")
		if got := Path(); got != want {
			t.Errorf("Path() = %q, want %q", got, want)
		}
	})
}
