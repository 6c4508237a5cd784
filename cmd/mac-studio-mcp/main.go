// ABOUTME: Entry point for mac-studio-mcp, the MCP bridge to the Mac Studio command endpoint
// ABOUTME: Dispatches the serve, health, tools, history and init subcommands

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/mac-studio-mcp/internal/config"
	"github.com/2389/mac-studio-mcp/internal/gateway"
	"github.com/2389/mac-studio-mcp/internal/store"
	"github.com/2389/mac-studio-mcp/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "1.0.0"

const banner = `
                                 _             _ _
  _ __ ___   __ _  ___       ___| |_ _   _  __| (_) ___
 | '_ ' _ \ / _' |/ __|_____/ __| __| | | |/ _' | |/ _ \
 | | | | | | (_| | (_|_____\__ \ |_| |_| | (_| | | (_) |
 |_| |_| |_|\__,_|\___|     |___/\__|\__,_|\__,_|_|\___/  mcp
`

func usage() {
	fmt.Println("Usage: mac-studio-mcp <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                       Start the MCP server")
	fmt.Println("  health                      Query a running server's status")
	fmt.Println("  tools [--json]              Print the tool catalog")
	fmt.Println("  history [--limit N] [--tool NAME] [--errors]")
	fmt.Println("                              List recorded tool calls, newest first")
	fmt.Println("  init                        Create a new config file interactively")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "tools":
		err = runTools(os.Stdout, os.Args[2:])
	case "history":
		err = runHistory(ctx, os.Stdout, os.Args[2:])
	case "init":
		err = runInit(os.Stdin)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.Path()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Remote:    %s\n", cfg.Remote.BaseURL)
	green.Print("    ▶ ")
	if cfg.Database.Path != "" {
		fmt.Printf("History:   %s\n", cfg.Database.Path)
	} else {
		fmt.Print("History:   ")
		gray.Println("disabled")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		} else if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.DialRemote {
			yellow.Print(" [dial]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting mac-studio-mcp",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"remote", cfg.Remote.BaseURL,
	)

	gw, err := gateway.New(cfg, logger, gateway.Options{Version: version})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// localURL turns a listen address into something a local client can dial.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := localURL(cfg.Server.HTTPAddr) + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var status struct {
		Status       string `json:"status"`
		Version      string `json:"version"`
		MacFunnelURL string `json:"mac_funnel_url"`
		MacStatus    string `json:"mac_status"`
		Tools        int    `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}

	fmt.Printf("%s (version %s, %d tools)\n", status.Status, status.Version, status.Tools)
	switch status.MacStatus {
	case "connected":
		color.Green("remote %s: %s", status.MacFunnelURL, status.MacStatus)
	default:
		color.Red("remote %s: %s", status.MacFunnelURL, status.MacStatus)
	}
	return nil
}

func runTools(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the catalog as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	catalog := tools.Default().List()
	if *asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"tools": catalog})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, d := range catalog {
		fmt.Fprintf(tw, "%s\t%s\n", d.Name, d.Description)
	}
	return tw.Flush()
}

func runHistory(ctx context.Context, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum number of calls to show (max 1000)")
	toolName := fs.String("tool", "", "only show calls to this tool")
	errorsOnly := fs.Bool("errors", false, "only show failed calls")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("call history is disabled: set database.path or MAC_MCP_DB_PATH")
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	filter := store.ToolCallFilter{Limit: *limit, ErrorsOnly: *errorsOnly}
	if *toolName != "" {
		filter.ToolName = toolName
	}

	calls, err := s.ListToolCalls(ctx, filter)
	if err != nil {
		return err
	}
	return printHistory(w, calls)
}

func printHistory(w io.Writer, calls []store.ToolCall) error {
	if len(calls) == 0 {
		fmt.Fprintln(w, "no tool calls recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOOL\tRESULT\tDURATION\tCOMMAND")
	for _, c := range calls {
		result := "ok"
		if c.IsError {
			result = "error"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.Timestamp.Local().Format(time.DateTime),
			c.ToolName,
			result,
			c.Duration.Round(time.Millisecond),
			truncate(oneLine(c.Command), 60),
		)
	}
	return tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// getDataPath returns the path to the mac-studio-mcp data directory.
// Priority: XDG_DATA_HOME/mac-studio-mcp > ~/.local/share/mac-studio-mcp
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "mac-studio-mcp")
}

// initAnswers collects everything runInit asks for.
type initAnswers struct {
	HTTPAddr    string
	RemoteURL   string
	Timeout     string
	DBPath      string
	Tailscale   bool
	TSHostname  string
	TSAuthKey   string
	TSEphemeral bool
	TSFunnel    bool
	TSDial      bool
	LogLevel    string
	LogFormat   string
}

func runInit(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("mac-studio-mcp configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.Path())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Println("\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, "HTTP address", config.DefaultHTTPAddr)

	fmt.Println("\n--- Remote Configuration ---")
	a.RemoteURL = prompt(reader, "Remote base URL", config.DefaultFunnelURL)
	a.Timeout = prompt(reader, "Remote timeout", config.DefaultRemoteTimeout)

	fmt.Println("\n--- Call History ---")
	a.DBPath = prompt(reader, "SQLite database path (empty disables history)", filepath.Join(getDataPath(), "history.db"))

	fmt.Println("\n--- Tailscale Configuration ---")
	a.Tailscale = yes(prompt(reader, "Enable Tailscale?", "no"))
	if a.Tailscale {
		a.TSHostname = prompt(reader, "Tailscale hostname", "mac-studio-mcp")
		a.TSAuthKey = prompt(reader, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		a.TSEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
		a.TSFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
		a.TSDial = yes(prompt(reader, "Reach the remote through the tailnet?", "no"))
	}

	fmt.Println("\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Auth keys may land in the file.
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if a.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(a.DBPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  mac-studio-mcp serve\n")

	return nil
}

func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# mac-studio-mcp configuration\n")
	cfg.WriteString("# Generated by mac-studio-mcp init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", a.HTTPAddr))
	cfg.WriteString("\n")

	cfg.WriteString("remote:\n")
	cfg.WriteString(fmt.Sprintf("  base_url: %q\n", a.RemoteURL))
	cfg.WriteString(fmt.Sprintf("  timeout: %q\n", a.Timeout))
	cfg.WriteString("  insecure_skip_verify: true\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", a.DBPath))
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.Tailscale))
	if a.Tailscale {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", a.TSHostname))
		if a.TSAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: %q\n", a.TSAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", a.TSEphemeral))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", a.TSFunnel))
		cfg.WriteString(fmt.Sprintf("  dial_remote: %t\n", a.TSDial))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.LogFormat))

	return cfg.String()
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
