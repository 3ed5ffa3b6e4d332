package tenant

import (
	"time"

	"nutrigate/internal/creds"
	"nutrigate/internal/oauth1"
	"nutrigate/internal/platform"
)

// State describes where a tenant is in the authorization lifecycle.
type State string

const (
	// StateUnconfigured means no consumer credentials are present.
	StateUnconfigured State = "unconfigured"

	// StateConfigured means consumer credentials are present but no user
	// authorization exists.
	StateConfigured State = "configured"

	// StatePendingAuthorization means a request token has been issued and
	// the flow is waiting for the user's verifier.
	StatePendingAuthorization State = "pending_authorization"

	// StateAuthorized means a long-lived user access token is held.
	StateAuthorized State = "authorized"
)

// Status is a read-only snapshot of a tenant's authorization state. It is
// computed without network calls.
type Status struct {
	State                State `json:"state"`
	Configured           bool  `json:"configured"`
	PendingAuthorization bool  `json:"pending_authorization"`
	Authorized           bool  `json:"authorized"`
}

// Endpoints is the set of platform endpoints a tenant talks to. Defaults
// point at the FatSecret platform; all are overridable through config for
// testing against fakes.
type Endpoints struct {
	RequestTokenURL string
	AccessTokenURL  string
	AuthorizeURL    string
	TokenURL        string
	APIURL          string
}

// DefaultEndpoints returns the FatSecret platform endpoint set.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		RequestTokenURL: "https://authentication.fatsecret.com/oauth/request_token",
		AccessTokenURL:  "https://authentication.fatsecret.com/oauth/access_token",
		AuthorizeURL:    "https://authentication.fatsecret.com/oauth/authorize",
		TokenURL:        "https://oauth.fatsecret.com/connect/token",
		APIURL:          "https://platform.fatsecret.com/rest/server.api",
	}
}

// Persister is the durable storage collaborator. The single-process tenant
// persists through it on configure and on authorization completion;
// session-scoped tenants have none and stay ephemeral.
type Persister interface {
	Load() (creds.Record, error)
	Save(creds.Record) error
}

// Config assembles a tenant's collaborators.
type Config struct {
	// API is the platform transport. Required.
	API platform.Invoker

	// Endpoints defaults to DefaultEndpoints() when zero.
	Endpoints Endpoints

	// Store, when set, receives credential updates. Leave nil for
	// ephemeral (session-scoped) tenants.
	Store Persister

	// Signer defaults to a production signer.
	Signer *oauth1.Signer

	// Now defaults to time.Now. Injectable for expiry tests.
	Now func() time.Time
}
