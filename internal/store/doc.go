// Package store persists tool-call history using SQLite.
//
// Every tools/call handled by the MCP dispatcher is appended to the
// tool_calls table: the generated call id, the caller's JSON-RPC id, the tool
// name, the remote path and command (when one was built), whether the result
// was an error, and how long it took.
//
// The history is write-mostly. The CLI's history subcommand reads it back
// newest first:
//
//	s, err := store.NewSQLiteStore(path)
//	calls, err := s.ListToolCalls(ctx, store.ToolCallFilter{Limit: 50})
//
// Recording never affects a tool call's result; failures are only logged.
package store
