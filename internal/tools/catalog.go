// ABOUTME: The fixed tool catalog published by tools/list.
// ABOUTME: Names and schemas form the public tool surface and must stay stable.

package tools

import "encoding/json"

// Tool names.
const (
	RunCommand    = "run_command"
	SSHToPi       = "ssh_to_pi"
	HealthCheck   = "health_check"
	ListFiles     = "list_files"
	ReadFile      = "read_file"
	WriteFile     = "write_file"
	GetSystemInfo = "get_system_info"
)

// Catalog returns the seven tool descriptors in their published order.
func Catalog() []Descriptor {
	return []Descriptor{
		{
			Name:        RunCommand,
			Description: "Execute a shell command on Mac Studio. Returns stdout, stderr, and return code.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"command": {
						"type": "string",
						"description": "Shell command to execute (e.g., 'ls -la', 'brew list', 'python3 script.py')"
					}
				},
				"required": ["command"]
			}`),
		},
		{
			Name:        SSHToPi,
			Description: "Execute a command on Raspberry Pi via SSH from Mac Studio",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"command": {"type": "string", "description": "Command to run on the Pi"},
					"host": {"type": "string", "description": "Pi IP address (default: 192.168.25.225)"},
					"user": {"type": "string", "description": "SSH user (default: jstewartrr)"}
				},
				"required": ["command"]
			}`),
		},
		{
			Name:        HealthCheck,
			Description: "Check if Mac Studio is reachable and get system info",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}, "required": []}`),
		},
		{
			Name:        ListFiles,
			Description: "List files in a directory on Mac Studio",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Directory path (default: home directory)"}
				},
				"required": []
			}`),
		},
		{
			Name:        ReadFile,
			Description: "Read contents of a file on Mac Studio",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Full path to file"},
					"lines": {"type": "integer", "description": "Number of lines to read (default: all). Use negative for tail."}
				},
				"required": ["path"]
			}`),
		},
		{
			Name:        WriteFile,
			Description: "Write content to a file on Mac Studio",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Full path to file"},
					"content": {"type": "string", "description": "Content to write"},
					"append": {"type": "boolean", "description": "Append instead of overwrite (default: false)"}
				},
				"required": ["path", "content"]
			}`),
		},
		{
			Name:        GetSystemInfo,
			Description: "Get Mac Studio system information (CPU, memory, disk, processes)",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}, "required": []}`),
		},
	}
}

// Default builds the registry over Catalog. The catalog is static, so a
// failure here is a programming error.
func Default() *Registry {
	r, err := NewRegistry(Catalog())
	if err != nil {
		panic("tools: invalid built-in catalog: " + err.Error())
	}
	return r
}
