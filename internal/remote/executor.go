// ABOUTME: Client for the remote command-execution endpoint behind the Tailscale Funnel.
// ABOUTME: Sends one GET/POST per call and decodes the JSON reply without interpreting it.

package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrTransport wraps every failure to obtain a JSON reply: request building,
// connection errors, timeouts, and bodies that are not JSON.
var ErrTransport = errors.New("remote transport failure")

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 60 * time.Second

// maxResponseSize caps how much of a remote reply is read (8MB).
const maxResponseSize = 8 << 20

// Remote endpoint paths.
const (
	PathRun    = "/run"
	PathSSH    = "/ssh"
	PathHealth = "/health"
)

// Method is the HTTP verb used for a call.
type Method string

const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

// Call is a fully resolved remote request.
type Call struct {
	Path    string         `json:"path"`
	Method  Method         `json:"method"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Command returns the payload's command string, if any.
func (c Call) Command() string {
	s, _ := c.Payload["command"].(string)
	return s
}

// Result is a decoded remote reply.
type Result struct {
	// Raw is the reply body exactly as received.
	Raw json.RawMessage
	// Fields is the decoded object, or nil when the reply is not a JSON object.
	Fields map[string]any
}

// Field looks up a top-level key of an object reply.
func (r *Result) Field(key string) (any, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[key]
	return v, ok
}

// String renders the whole reply as compact JSON.
func (r *Result) String() string {
	if r == nil {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, r.Raw); err != nil {
		return string(r.Raw)
	}
	return buf.String()
}

// Pretty renders the reply indented by two spaces, keeping the remote's key order.
func (r *Result) Pretty() string {
	if r == nil {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Raw, "", "  "); err != nil {
		return string(r.Raw)
	}
	return buf.String()
}

// Executor performs remote calls.
type Executor interface {
	Execute(ctx context.Context, call Call) (*Result, error)
}

// Config configures an HTTPExecutor.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// InsecureSkipVerify disables certificate checks. The funnel channel is
	// treated as unauthenticated either way.
	InsecureSkipVerify bool
	// DialContext overrides the dialer, e.g. to reach the remote through a tsnet node.
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)
}

// HTTPExecutor is the production Executor.
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExecutor returns an executor for cfg. A zero Timeout uses DefaultTimeout.
func NewHTTPExecutor(cfg Config) (*HTTPExecutor, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote base URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // funnel cert is not validated
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.DialContext != nil {
		transport.DialContext = cfg.DialContext
	}

	return &HTTPExecutor{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

// BaseURL returns the configured endpoint without a trailing slash.
func (e *HTTPExecutor) BaseURL() string {
	return e.baseURL
}

// Execute sends call and decodes the JSON reply. Any non-JSON reply is a
// transport failure; the HTTP status is otherwise not interpreted.
func (e *HTTPExecutor) Execute(ctx context.Context, call Call) (*Result, error) {
	var body io.Reader
	if call.Method == MethodPost {
		payload := call.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding payload: %v", ErrTransport, err)
		}
		body = bytes.NewReader(data)
	}

	method := call.Method
	if method == "" {
		method = MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, string(method), e.baseURL+call.Path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	return Decode(data)
}

// Decode parses a reply body into a Result.
func Decode(data []byte) (*Result, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: response is not JSON", ErrTransport)
	}

	res := &Result{Raw: json.RawMessage(data)}
	if len(data) > 0 && data[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("%w: decoding response: %v", ErrTransport, err)
		}
		res.Fields = fields
	}
	return res, nil
}
