// ABOUTME: Tool-call history entity and store methods
// ABOUTME: Records which tool ran, what command it sent and whether it failed

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ToolCall is one recorded tools/call.
type ToolCall struct {
	ID         string        // UUID v4, also the log correlation id
	RPCID      string        // JSON-RPC id as sent by the caller
	ToolName   string        // requested tool, possibly unknown
	RemotePath string        // remote endpoint hit, empty if none
	Command    string        // command sent to the remote, empty if none
	IsError    bool          // whether the call produced an error result
	Duration   time.Duration // time spent resolving and executing
	Timestamp  time.Time     // when it was recorded
}

// ToolCallFilter specifies filtering options for listing tool calls.
type ToolCallFilter struct {
	Since      *time.Time // calls at or after this time
	ToolName   *string    // only this tool
	ErrorsOnly bool       // only failed calls
	Limit      int        // max results (default 20, max 1000)
}

// AppendToolCall records a tool call.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendToolCall(ctx context.Context, c *ToolCall) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO tool_calls (call_id, rpc_id, tool_name, remote_path, command, is_error, duration_ms, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.RPCID,
		c.ToolName,
		c.RemotePath,
		c.Command,
		c.IsError,
		c.Duration.Milliseconds(),
		c.Timestamp.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call",
		"id", c.ID,
		"tool_name", c.ToolName,
		"is_error", c.IsError,
	)
	return nil
}

// normalizeToolCallLimit applies default (20) and cap (1000).
func normalizeToolCallLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const toolCallQuery = `
	SELECT call_id, rpc_id, tool_name, COALESCE(remote_path, ''), COALESCE(command, ''), is_error, duration_ms, ts
	FROM tool_calls
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR tool_name = ?)
	  AND (? = 0 OR is_error = 1)
	ORDER BY ts DESC, seq DESC
	LIMIT ?
`

// ListToolCalls returns recorded calls, newest first.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error) {
	var since *int64
	if f.Since != nil {
		n := f.Since.UTC().UnixNano()
		since = &n
	}

	rows, err := s.db.QueryContext(ctx, toolCallQuery,
		since, since,
		f.ToolName, f.ToolName,
		f.ErrorsOnly,
		normalizeToolCallLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer rows.Close()

	var calls []ToolCall
	for rows.Next() {
		var c ToolCall
		var durationMS, ts int64
		if err := rows.Scan(
			&c.ID,
			&c.RPCID,
			&c.ToolName,
			&c.RemotePath,
			&c.Command,
			&c.IsError,
			&durationMS,
			&ts,
		); err != nil {
			return nil, fmt.Errorf("scanning tool call: %w", err)
		}
		c.Duration = time.Duration(durationMS) * time.Millisecond
		c.Timestamp = time.Unix(0, ts).UTC()
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool calls: %w", err)
	}
	return calls, nil
}
