// ABOUTME: Tests for Gateway wiring and lifecycle
// ABOUTME: Drives the full HTTP stack against a fake remote TLS endpoint

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mac-studio-mcp/internal/config"
	"github.com/2389/mac-studio-mcp/internal/store"
)

// fakeRemote stands in for the command-execution endpoint.
func fakeRemote(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			_, _ = io.WriteString(w, `{"status":"ok","host":"studio"}`)
		case "/run":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"stdout":     "ran: " + body["command"],
				"stderr":     "",
				"returncode": 0,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testConfig creates a minimal config for testing with an available port.
func testConfig(t *testing.T, remoteURL string) *config.Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available HTTP port: %v", err)
	}
	httpAddr := ln.Addr().String()
	ln.Close()

	cfg := config.Default()
	cfg.Server.HTTPAddr = httpAddr
	cfg.Remote.BaseURL = remoteURL
	cfg.Remote.Timeout = 5 * time.Second
	cfg.Database.Path = store.MemoryPath
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rpc(t *testing.T, h http.Handler, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGatewayNew(t *testing.T) {
	remote := fakeRemote(t)
	cfg := testConfig(t, remote.URL)

	gw, err := New(cfg, testLogger(), Options{Version: "test"})
	require.NoError(t, err)
	defer gw.Shutdown(context.Background())

	assert.Same(t, cfg, gw.config)
	assert.Equal(t, 7, gw.Registry().Len())
	assert.NotNil(t, gw.store)
	assert.Nil(t, gw.tsnetServer)
	assert.Equal(t, remote.URL, gw.executor.BaseURL())
}

func TestGatewayNew_HistoryDisabled(t *testing.T) {
	cfg := testConfig(t, "https://127.0.0.1:1")
	cfg.Database.Path = ""

	gw, err := New(cfg, testLogger(), Options{})
	require.NoError(t, err)
	defer gw.Shutdown(context.Background())

	assert.Nil(t, gw.store)
}

func TestGatewayNew_TailscaleRequiresAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")
	cfg := testConfig(t, "https://127.0.0.1:1")
	cfg.Tailscale.Enabled = true
	cfg.Tailscale.Hostname = "mac-mcp"
	cfg.Tailscale.StateDir = t.TempDir()

	_, err := New(cfg, testLogger(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tailscale auth key required")
}

func TestGateway_ToolCallEndToEnd(t *testing.T) {
	remote := fakeRemote(t)
	cfg := testConfig(t, remote.URL)

	gw, err := New(cfg, testLogger(), Options{Version: "test"})
	require.NoError(t, err)
	defer gw.Shutdown(context.Background())

	resp := rpc(t, gw.Handler(), `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"list_files","arguments":{"path":"/tmp"}}}`)
	assert.EqualValues(t, 9, resp["id"])

	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "expected result, got %v", resp)
	content := result["content"].([]any)
	require.Len(t, content, 1)
	assert.Equal(t, "ran: ls -la /tmp", content[0].(map[string]any)["text"])
	assert.NotContains(t, result, "isError")

	calls, err := gw.store.ListToolCalls(context.Background(), store.ToolCallFilter{})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "list_files", calls[0].ToolName)
	assert.Equal(t, "/run", calls[0].RemotePath)
	assert.Equal(t, "ls -la /tmp", calls[0].Command)
	assert.Equal(t, "9", calls[0].RPCID)
}

func TestGateway_RootProbe(t *testing.T) {
	remote := fakeRemote(t)
	cfg := testConfig(t, remote.URL)

	gw, err := New(cfg, testLogger(), Options{Version: "test"})
	require.NoError(t, err)
	defer gw.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "connected", status["mac_status"])
	assert.Equal(t, remote.URL, status["mac_funnel_url"])
	assert.EqualValues(t, 7, status["tools"])
}

func TestGatewayRunAndShutdown(t *testing.T) {
	remote := fakeRemote(t)
	cfg := testConfig(t, remote.URL)

	gw, err := New(cfg, testLogger(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	// Run gateway in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Run(ctx)
	}()

	// Give it time to start
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://" + cfg.Server.HTTPAddr + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Shutdown via context cancel
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("gateway did not shutdown in time")
	}
}

func TestGatewayRun_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t, "https://127.0.0.1:1")
	cfg.Server.HTTPAddr = ln.Addr().String()

	gw, err := New(cfg, testLogger(), Options{})
	require.NoError(t, err)

	err = gw.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on HTTP address")
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "tskey-env")

	key, err := resolveTailscaleAuthKey("tskey-config")
	require.NoError(t, err)
	assert.Equal(t, "tskey-config", key)

	key, err = resolveTailscaleAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)
}

func TestResolveTailscaleStateDir(t *testing.T) {
	dir, err := resolveTailscaleStateDir("/var/lib/mac-mcp")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/mac-mcp", dir)

	t.Setenv("HOME", "/home/tester")
	dir, err = resolveTailscaleStateDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/tester", ".local", "share", "mac-studio-mcp", "tailscale"), dir)
}
