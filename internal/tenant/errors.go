package tenant

import "errors"

// ErrEmptyVerifier is returned when authorization completion is attempted
// without a verifier value.
var ErrEmptyVerifier = errors.New("tenant: verifier must not be empty")

// NotConfiguredError is returned when an operation requires consumer
// credentials and none are configured.
type NotConfiguredError struct{}

func (e *NotConfiguredError) Error() string {
	return "consumer credentials are not configured"
}

// UnauthorizedError is returned when a protected call is attempted without a
// user access token. The call fails before any network traffic.
type UnauthorizedError struct{}

func (e *UnauthorizedError) Error() string {
	return "no user access token; complete the authorization flow first"
}

// NoPendingAuthorizationError is returned when authorization completion is
// attempted without a preceding start.
type NoPendingAuthorizationError struct{}

func (e *NoPendingAuthorizationError) Error() string {
	return "no pending authorization; start the authorization flow first"
}
