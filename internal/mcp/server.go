// ABOUTME: MCP-compatible HTTP endpoints: POST /mcp for JSON-RPC and GET / for liveness.
// ABOUTME: Handles body parsing, panic recovery and the remote reachability probe.

package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Remote reachability as reported by the liveness probe.
const (
	RemoteConnected   = "connected"
	RemoteError       = "error"
	RemoteUnreachable = "unreachable"
)

// Config holds configuration for the MCP server.
type Config struct {
	Dispatcher *Dispatcher
	Logger     *slog.Logger
	// FunnelURL is the remote base URL, echoed by the liveness probe.
	FunnelURL string
}

// Server implements the HTTP surface in front of the Dispatcher.
type Server struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	funnelURL  string
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		dispatcher: cfg.Dispatcher,
		logger:     logger,
		funnelURL:  cfg.FunnelURL,
	}, nil
}

// RegisterRoutes registers the liveness probe and the MCP endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("/mcp", s.handleMCP)
}

// StatusResponse is the liveness probe body.
type StatusResponse struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	Version      string `json:"version"`
	MacFunnelURL string `json:"mac_funnel_url"`
	MacStatus    string `json:"mac_status"`
	Tools        int    `json:"tools"`
}

// handleRoot always answers 200; remote trouble only shows in mac_status.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	macStatus := RemoteConnected
	res, err := s.dispatcher.invoker.Health(r.Context())
	switch {
	case err != nil:
		s.logger.Warn("remote health probe failed", "error", err)
		macStatus = RemoteUnreachable
	default:
		if status, _ := res.Field("status"); status != "ok" {
			macStatus = RemoteError
		}
	}

	s.writeJSON(w, http.StatusOK, StatusResponse{
		Status:       "healthy",
		Service:      ServerName,
		Version:      s.dispatcher.version,
		MacFunnelURL: s.funnelURL,
		MacStatus:    macStatus,
		Tools:        s.dispatcher.registry.Len(),
	})
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handlePost(w, r)
}

// handlePost processes one JSON-RPC message.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse(nil, JSONRPCParseError, "Parse error"))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.writeJSON(w, http.StatusBadRequest, errorResponse(nil, JSONRPCInvalidRequest, "request body too large"))
		return
	}

	req, ok := parseRequest(body)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse(nil, JSONRPCParseError, "Parse error"))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("MCP handler error", "method", req.Method, "panic", rec)
			id := req.ID
			if len(id) == 0 {
				id = defaultID
			}
			s.writeJSON(w, http.StatusInternalServerError, errorResponse(id, JSONRPCInternalError, fmt.Sprint(rec)))
		}
	}()

	s.logger.Debug("MCP request", "method", req.Method)

	resp := s.dispatcher.Dispatch(r.Context(), req)
	s.writeJSON(w, http.StatusOK, resp)
}

// parseRequest accepts only a non-empty JSON object.
func parseRequest(body []byte) (Request, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		return Request{}, false
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, false
	}
	return req, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
