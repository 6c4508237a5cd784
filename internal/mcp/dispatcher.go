// ABOUTME: Routes a parsed JSON-RPC request to the lifecycle, catalog, or tool-call branch.
// ABOUTME: Holds no state across requests; tool calls are recorded through an optional Recorder.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/mac-studio-mcp/internal/invoker"
	"github.com/2389/mac-studio-mcp/internal/remote"
	"github.com/2389/mac-studio-mcp/internal/store"
	"github.com/2389/mac-studio-mcp/internal/tools"
)

// ToolInvoker executes tool calls and probes the remote endpoint.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) invoker.Outcome
	Health(ctx context.Context) (*remote.Result, error)
}

// Recorder persists tool-call history.
type Recorder interface {
	AppendToolCall(ctx context.Context, c *store.ToolCall) error
}

// DispatcherConfig holds the dispatcher's collaborators.
type DispatcherConfig struct {
	Registry *tools.Registry
	Invoker  ToolInvoker
	Recorder Recorder // optional
	Logger   *slog.Logger
	Version  string
}

// Dispatcher implements the MCP method table.
type Dispatcher struct {
	registry *tools.Registry
	invoker  ToolInvoker
	recorder Recorder
	logger   *slog.Logger
	version  string
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Invoker == nil {
		return nil, errors.New("invoker is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "1.0.0"
	}

	return &Dispatcher{
		registry: cfg.Registry,
		invoker:  cfg.Invoker,
		recorder: cfg.Recorder,
		logger:   logger,
		version:  version,
	}, nil
}

// Dispatch handles one request and returns its response. The response id
// always equals the request id, or 1 when the request has none.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	id := req.ID
	if len(id) == 0 {
		id = defaultID
	}

	switch req.Method {
	case "initialize":
		return resultResponse(id, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities: map[string]any{
				"tools": map[string]any{"listChanged": true},
			},
			ServerInfo: ServerInfo{Name: ServerName, Version: d.version},
		})
	case "tools/list":
		return resultResponse(id, ListToolsResult{Tools: d.registry.List()})
	case "tools/call":
		return d.handleToolsCall(ctx, id, req.Params)
	case "notifications/initialized":
		return resultResponse(id, map[string]any{})
	default:
		return errorResponse(id, JSONRPCMethodNotFound, "Method not found: "+req.Method)
	}
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, id, rawParams json.RawMessage) Response {
	var params CallToolParams
	if len(rawParams) > 0 && !bytes.Equal(rawParams, []byte("null")) {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return errorResponse(id, JSONRPCInvalidParams, "Invalid params")
		}
	}

	requestID := uuid.New().String()
	d.logger.Debug("tools/call",
		"tool_name", params.Name,
		"request_id", requestID,
	)

	started := time.Now()
	out := d.invoker.Invoke(ctx, params.Name, params.Arguments)
	elapsed := time.Since(started)

	d.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"request_id", requestID,
		"is_error", out.IsError,
		"duration", elapsed,
	)

	d.record(ctx, requestID, id, params.Name, out, elapsed)

	return resultResponse(id, FormatToolResult(out.Text, out.IsError))
}

// record stores the call outcome. Failures are logged and otherwise ignored.
func (d *Dispatcher) record(ctx context.Context, requestID string, rpcID json.RawMessage, name string, out invoker.Outcome, elapsed time.Duration) {
	if d.recorder == nil {
		return
	}

	c := &store.ToolCall{
		ID:       requestID,
		RPCID:    string(rpcID),
		ToolName: name,
		IsError:  out.IsError,
		Duration: elapsed,
	}
	if out.Call != nil {
		c.RemotePath = out.Call.Path
		c.Command = out.Call.Command()
	}

	if err := d.recorder.AppendToolCall(context.WithoutCancel(ctx), c); err != nil {
		d.logger.Warn("failed to record tool call",
			"tool_name", name,
			"request_id", requestID,
			"error", err,
		)
	}
}
