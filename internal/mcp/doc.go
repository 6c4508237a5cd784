// Package mcp implements the Model Context Protocol surface of the server.
//
// # Protocol
//
// Callers speak JSON-RPC 2.0 over HTTP:
//
//   - POST /mcp - one JSON-RPC request per body
//   - GET /     - liveness probe that also reports remote reachability
//
// Supported methods are initialize, tools/list, tools/call and
// notifications/initialized. Anything else yields -32601.
//
// # Tool Execution
//
// Clients call tools/call to execute a tool:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "read_file",
//	    "arguments": {"path": "/tmp/x", "lines": -5}
//	  },
//	  "id": 2
//	}
//
// Tool failures (unknown tool, bad arguments, remote errors) are not JSON-RPC
// errors. They come back as a normal result with "isError": true:
//
//	{"content": [{"type": "text", "text": "Unknown tool: nope"}], "isError": true}
//
// # Architecture
//
// Components:
//
//   - Dispatcher: method table over an already-parsed Request
//   - Server: HTTP handlers, body parsing, panic recovery
//   - FormatToolResult: wraps invoker output in the content envelope
package mcp
