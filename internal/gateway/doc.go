// Package gateway exposes the platform credential broker as an MCP server.
//
// The gateway serves six tools: auth_configure, auth_start, auth_complete
// and auth_status drive the authorization lifecycle, while api_call and
// api_call_app invoke the platform API with user-scoped and
// application-scoped authentication respectively.
//
// # Transports and tenancy
//
// Over stdio the gateway serves one local caller. All tool calls route to a
// single tenant backed by the on-disk credential store, and a file watcher
// picks up logins performed by the CLI while the gateway runs.
//
// Over streamable-http each MCP session owns an ephemeral tenant managed by
// the SessionRegistry. Session tenants have no storage attached: remote
// callers bring their own credentials per session and can neither read nor
// overwrite the operator's credential file. Sessions are created when the
// transport registers them and dropped when it unregisters them; an
// optional idle sweep covers transports that cannot guarantee close
// signaling.
package gateway
