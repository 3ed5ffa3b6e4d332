// Package platform is the transport boundary to the remote nutrition
// platform. It exposes a single uniform Invoke contract: the credential core
// supplies auth material per request, and request/response payloads pass
// through untouched.
package platform
