// Package config handles configuration loading for mac-studio-mcp.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Anything the file leaves out keeps its default, and a missing
// file is not an error for LoadOrDefault.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from MAC_MCP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/mac-studio-mcp/config.yaml
//  3. ~/.config/mac-studio-mcp/config.yaml
//
// Files ending in .toml are decoded as TOML; everything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Environment Overrides
//
// Applied after the file is decoded:
//
//   - MAC_FUNNEL_URL  sets remote.base_url
//   - PORT            sets server.http_addr to 0.0.0.0:$PORT
//   - MAC_MCP_DB_PATH sets database.path
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
//	remote:
//	  base_url: "https://mac-studio-1556.tailfb6577.ts.net"
//	  timeout: "60s"
//	  insecure_skip_verify: true
//	  pi_host: "192.168.25.225"
//	  pi_user: "jstewartrr"
//
//	database:
//	  path: "/var/lib/mac-studio-mcp/history.db"  # empty disables history
//
//	tailscale:
//	  enabled: false
//	  hostname: "mac-studio-mcp"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: false
//	  funnel: false
//	  dial_remote: false
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
