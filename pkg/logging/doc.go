// Package logging provides structured logging for nutrigate.
//
// The package is a thin wrapper over the standard library's slog package.
// Every log call carries a subsystem tag so entries from the gateway, the
// tenant state machine, and the credential store can be told apart:
//
//	logging.Debug("Tenant", "authorization started for %s", id)
//
// Call Init once at startup. Output defaults to stderr; with the stdio
// transport it must stay there, since stdout carries the MCP stream.
//
// Credential material (consumer secrets, tokens, verifiers) is never passed
// to this package.
package logging
