// ABOUTME: Translates MCP tool calls into remote endpoint calls and interprets the replies.
// ABOUTME: Every failure becomes an error Outcome; nothing escapes to the protocol layer.

package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/2389/mac-studio-mcp/internal/remote"
	"github.com/2389/mac-studio-mcp/internal/tools"
)

// Defaults for ssh_to_pi.
const (
	DefaultPiHost = "192.168.25.225"
	DefaultPiUser = "jstewartrr"
)

// errMissingArgument indicates a required argument was absent or of the wrong type.
var errMissingArgument = errors.New("missing required argument")

// Outcome is the result of one tool call.
type Outcome struct {
	Text    string
	IsError bool
	// Call is the remote call that was attempted, nil if none was built.
	Call *remote.Call
}

func success(text string) Outcome {
	return Outcome{Text: text}
}

func failure(err error) Outcome {
	return Outcome{Text: "Error: " + err.Error(), IsError: true}
}

// tool pairs how a call is built with how its reply is read.
type tool struct {
	build     func(inv *Invoker, a arguments) (remote.Call, error)
	interpret func(a arguments, res *remote.Result) Outcome
}

// Config holds the invoker's collaborators.
type Config struct {
	Registry *tools.Registry
	Executor remote.Executor
	Logger   *slog.Logger
	PiHost   string
	PiUser   string
}

// Invoker resolves and executes tool calls. It holds no per-call state and is
// safe for concurrent use.
type Invoker struct {
	registry *tools.Registry
	executor remote.Executor
	logger   *slog.Logger
	piHost   string
	piUser   string
	tools    map[string]tool
}

// New creates an Invoker.
func New(cfg Config) (*Invoker, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	piHost := cfg.PiHost
	if piHost == "" {
		piHost = DefaultPiHost
	}
	piUser := cfg.PiUser
	if piUser == "" {
		piUser = DefaultPiUser
	}

	return &Invoker{
		registry: cfg.Registry,
		executor: cfg.Executor,
		logger:   logger,
		piHost:   piHost,
		piUser:   piUser,
		tools:    builtinTools(),
	}, nil
}

// Invoke runs the named tool with raw JSON arguments.
func (inv *Invoker) Invoke(ctx context.Context, name string, raw json.RawMessage) Outcome {
	t, ok := inv.tools[name]
	if _, registered := inv.registry.Describe(name); !ok || !registered {
		return Outcome{Text: "Unknown tool: " + name, IsError: true}
	}

	if err := inv.registry.Validate(name, raw); err != nil {
		return failure(err)
	}

	a, err := decodeArguments(raw)
	if err != nil {
		return failure(err)
	}

	call, err := t.build(inv, a)
	if err != nil {
		return failure(err)
	}

	res, err := inv.executor.Execute(ctx, call)
	if err != nil {
		inv.logger.Warn("remote call failed",
			"tool_name", name,
			"path", call.Path,
			"error", err,
		)
		out := failure(err)
		out.Call = &call
		return out
	}

	out := t.interpret(a, res)
	out.Call = &call
	return out
}

// Health performs the remote /health call used by the liveness probe.
func (inv *Invoker) Health(ctx context.Context) (*remote.Result, error) {
	return inv.executor.Execute(ctx, remote.Call{Path: remote.PathHealth, Method: remote.MethodGet})
}

func builtinTools() map[string]tool {
	return map[string]tool{
		tools.RunCommand: {
			build: func(_ *Invoker, a arguments) (remote.Call, error) {
				cmd, err := a.requireString("command")
				if err != nil {
					return remote.Call{}, err
				}
				return runCall(cmd), nil
			},
			interpret: prettyReply,
		},
		tools.SSHToPi: {
			build: func(inv *Invoker, a arguments) (remote.Call, error) {
				cmd, err := a.requireString("command")
				if err != nil {
					return remote.Call{}, err
				}
				return remote.Call{
					Path:   remote.PathSSH,
					Method: remote.MethodPost,
					Payload: map[string]any{
						"command": cmd,
						"host":    a.stringOr("host", inv.piHost),
						"user":    a.stringOr("user", inv.piUser),
					},
				}, nil
			},
			interpret: prettyReply,
		},
		tools.HealthCheck: {
			build: func(_ *Invoker, _ arguments) (remote.Call, error) {
				return remote.Call{Path: remote.PathHealth, Method: remote.MethodGet}, nil
			},
			interpret: prettyReply,
		},
		tools.ListFiles: {
			build: func(_ *Invoker, a arguments) (remote.Call, error) {
				return runCall(listFilesCommand(a.stringOr("path", defaultListPath))), nil
			},
			interpret: stdoutReply,
		},
		tools.ReadFile: {
			build: func(_ *Invoker, a arguments) (remote.Call, error) {
				path, err := a.requireString("path")
				if err != nil {
					return remote.Call{}, err
				}
				lines, err := a.integer("lines")
				if err != nil {
					return remote.Call{}, err
				}
				return runCall(readFileCommand(path, lines)), nil
			},
			interpret: stdoutReply,
		},
		tools.WriteFile: {
			build: func(_ *Invoker, a arguments) (remote.Call, error) {
				path, err := a.requireString("path")
				if err != nil {
					return remote.Call{}, err
				}
				content, err := a.requireString("content")
				if err != nil {
					return remote.Call{}, err
				}
				return runCall(writeFileCommand(path, content, a.boolean("append"))), nil
			},
			interpret: func(a arguments, res *remote.Result) Outcome {
				if code, ok := returnCode(res); ok && code == 0 {
					path, _ := a.requireString("path")
					return success("Successfully wrote to " + path)
				}
				return Outcome{Text: "Error: " + stderrChain.text(res), IsError: true}
			},
		},
		tools.GetSystemInfo: {
			build: func(_ *Invoker, _ arguments) (remote.Call, error) {
				return runCall(SystemInfoCommand), nil
			},
			interpret: stdoutReply,
		},
	}
}

func runCall(command string) remote.Call {
	return remote.Call{
		Path:    remote.PathRun,
		Method:  remote.MethodPost,
		Payload: map[string]any{"command": command},
	}
}

func prettyReply(_ arguments, res *remote.Result) Outcome {
	return success(res.Pretty())
}

func stdoutReply(_ arguments, res *remote.Result) Outcome {
	return success(stdoutChain.text(res))
}

// arguments is a decoded tools/call argument object.
type arguments map[string]any

func decodeArguments(raw json.RawMessage) (arguments, error) {
	a := arguments{}
	if len(raw) == 0 || string(raw) == "null" {
		return a, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding arguments: %w", err)
	}
	return a, nil
}

func (a arguments) requireString(key string) (string, error) {
	s, ok := a[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s", errMissingArgument, key)
	}
	return s, nil
}

func (a arguments) stringOr(key, def string) string {
	if s, ok := a[key].(string); ok {
		return s
	}
	return def
}

func (a arguments) boolean(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// integer returns 0 when key is absent.
func (a arguments) integer(key string) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, nil
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("argument %s must be an integer", key)
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("argument %s must be an integer", key)
	}
	return int(f), nil
}
