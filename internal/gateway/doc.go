// Package gateway wires mac-studio-mcp together and runs it.
//
// New builds the tool registry, the HTTP executor for the remote endpoint,
// the invoker, the optional SQLite call-history store, and the MCP
// dispatcher and HTTP server. Run picks a listener:
//
//   - plain TCP on server.http_addr
//   - a tsnet node on :80 when tailscale is enabled
//   - tsnet :443 with tailnet certificates when tailscale.https is set
//   - a public Funnel listener on :443 when tailscale.funnel is set
//
// With tailscale.dial_remote the executor reaches the remote endpoint through
// the same tsnet node.
//
// Run returns when its context is canceled, draining in-flight requests for
// up to five seconds.
package gateway
