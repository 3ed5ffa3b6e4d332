// Package tenant holds the credential and authorization core: the
// three-legged OAuth 1.0a state machine, the client-credentials token cache,
// and the protected-call entry points.
//
// A Tenant is the unit of isolation. The CLI and the stdio transport own a
// single persisted tenant for the process lifetime; the networked transport
// creates one ephemeral tenant per session through the gateway's session
// registry.
package tenant
