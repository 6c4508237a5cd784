// ABOUTME: Gateway orchestrator that wires the MCP server to the remote executor
// ABOUTME: Manages the HTTP listener (TCP or tsnet), call-history store and shutdown lifecycle

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/mac-studio-mcp/internal/config"
	"github.com/2389/mac-studio-mcp/internal/invoker"
	"github.com/2389/mac-studio-mcp/internal/mcp"
	"github.com/2389/mac-studio-mcp/internal/remote"
	"github.com/2389/mac-studio-mcp/internal/store"
	"github.com/2389/mac-studio-mcp/internal/tools"
)

// Gateway orchestrates the mac-studio-mcp server components.
type Gateway struct {
	config      *config.Config
	registry    *tools.Registry
	executor    *remote.HTTPExecutor
	invoker     *invoker.Invoker
	dispatcher  *mcp.Dispatcher
	mcpServer   *mcp.Server
	store       *store.SQLiteStore // nil when history is disabled
	httpServer  *http.Server
	tsnetServer *tsnet.Server // nil unless tailscale is enabled
	logger      *slog.Logger
	version     string
}

// Options carries values decided by the binary rather than the config file.
type Options struct {
	Version string
}

// initStore opens the history store, or returns nil when no path is configured.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	if cfg.Database.Path == "" {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gw := &Gateway{
		config:   cfg,
		registry: tools.Default(),
		logger:   logger.With("component", "gateway"),
		version:  opts.Version,
	}

	if cfg.Tailscale.Enabled {
		ts, err := newTailscaleServer(cfg.Tailscale)
		if err != nil {
			return nil, err
		}
		gw.tsnetServer = ts
	}

	execCfg := remote.Config{
		BaseURL:            cfg.Remote.BaseURL,
		Timeout:            cfg.Remote.Timeout,
		InsecureSkipVerify: cfg.Remote.InsecureSkipVerify,
	}
	if cfg.Tailscale.DialRemote && gw.tsnetServer != nil {
		// tsnet starts the node on first dial if Run has not brought it up yet.
		execCfg.DialContext = gw.tsnetServer.Dial
		logger.Info("remote calls routed through tailnet", "base_url", cfg.Remote.BaseURL)
	}
	executor, err := remote.NewHTTPExecutor(execCfg)
	if err != nil {
		return nil, fmt.Errorf("creating remote executor: %w", err)
	}
	gw.executor = executor

	gw.invoker, err = invoker.New(invoker.Config{
		Registry: gw.registry,
		Executor: executor,
		Logger:   logger.With("component", "invoker"),
		PiHost:   cfg.Remote.PiHost,
		PiUser:   cfg.Remote.PiUser,
	})
	if err != nil {
		return nil, fmt.Errorf("creating invoker: %w", err)
	}

	gw.store, err = initStore(cfg)
	if err != nil {
		return nil, err
	}

	dispatcherCfg := mcp.DispatcherConfig{
		Registry: gw.registry,
		Invoker:  gw.invoker,
		Logger:   logger.With("component", "dispatcher"),
		Version:  opts.Version,
	}
	if gw.store != nil {
		dispatcherCfg.Recorder = gw.store
	} else {
		logger.Info("call history disabled (database.path not set)")
	}
	gw.dispatcher, err = mcp.NewDispatcher(dispatcherCfg)
	if err != nil {
		gw.closeStore()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	gw.mcpServer, err = mcp.NewServer(mcp.Config{
		Dispatcher: gw.dispatcher,
		Logger:     logger.With("component", "mcp"),
		FunnelURL:  executor.BaseURL(),
	})
	if err != nil {
		gw.closeStore()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	mux := http.NewServeMux()
	gw.mcpServer.RegisterRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the HTTP handler serving / and /mcp.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Registry returns the tool catalog served by this gateway.
func (g *Gateway) Registry() *tools.Registry {
	return g.registry
}

// setupTCPListener creates a standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway",
		"http_addr", g.config.Server.HTTPAddr,
		"remote", g.executor.BaseURL(),
		"tools", g.registry.Len(),
	)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.tsnetServer != nil {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// startServer starts the HTTP server in a goroutine, returning its error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		g.closeStore()
		return err
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "mac-studio-mcp", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable (get one at https://login.tailscale.com/admin/settings/keys)")
	}
	return authKey, nil
}

// newTailscaleServer builds the tsnet node without starting it.
func newTailscaleServer(tsCfg config.TailscaleConfig) (*tsnet.Server, error) {
	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	return &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}, nil
}

// setupTailscaleListener brings the tsnet node up and returns its HTTP listener.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	g.logger.Info("starting tailscale node",
		"hostname", tsCfg.Hostname,
		"state_dir", g.tsnetServer.Dir,
		"ephemeral", tsCfg.Ephemeral,
	)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	g.logTailscaleStatus(tsCfg.Hostname, status)

	return g.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func (g *Gateway) closeStore() error {
	if g.store == nil {
		return nil
	}
	err := g.store.Close()
	g.store = nil
	return err
}

// Shutdown gracefully stops the HTTP server and releases resources.
// Safe to call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
		g.tsnetServer = nil
	}
	errs = appendCloseError(errs, "store close", g.closeStore())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
