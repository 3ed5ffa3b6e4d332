package tenant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"nutrigate/internal/creds"
	"nutrigate/internal/oauth1"
	"nutrigate/internal/platform"
	"nutrigate/pkg/logging"
)

// oobCallback marks the flow as PIN-based: the platform displays the
// verifier to the user instead of redirecting.
const oobCallback = "oob"

// Tenant is one isolated unit of credential and authorization state: consumer
// credentials, an optional user access token, at most one pending request
// token, and a cached client-credentials bearer token.
//
// The single-process mode owns exactly one Tenant, restored from durable
// storage at startup. The networked mode creates one ephemeral Tenant per
// session.
//
// All methods are safe for concurrent use. Network exchanges happen outside
// the state lock; the pending request token is a single last-write-wins slot.
type Tenant struct {
	mu sync.Mutex

	consumerKey    string
	consumerSecret string

	userToken  string
	userSecret string

	pendingToken  string
	pendingSecret string

	bearer *oauth2.Token

	refreshGroup singleflight.Group

	api       platform.Invoker
	endpoints Endpoints
	store     Persister
	signer    *oauth1.Signer
	now       func() time.Time
}

// New creates a tenant from cfg. cfg.API is required.
func New(cfg Config) *Tenant {
	if cfg.API == nil {
		panic("tenant: Config.API is required")
	}
	if cfg.Endpoints == (Endpoints{}) {
		cfg.Endpoints = DefaultEndpoints()
	}
	if cfg.Signer == nil {
		cfg.Signer = oauth1.NewSigner()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tenant{
		api:       cfg.API,
		endpoints: cfg.Endpoints,
		store:     cfg.Store,
		signer:    cfg.Signer,
		now:       cfg.Now,
	}
}

// Restore seeds the tenant from a credential record (typically the persisted
// record merged with runtime overrides). Nothing is written back.
func (t *Tenant) Restore(rec creds.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.consumerKey = rec.ConsumerKey
	t.consumerSecret = rec.ConsumerSecret
	t.userToken = rec.AccessToken
	t.userSecret = rec.AccessTokenSecret
}

// Configure sets the consumer credentials and persists them immediately.
// An existing user token is retained: consumer identity and user
// authorization are independent facts.
func (t *Tenant) Configure(consumerKey, consumerSecret string) error {
	if consumerKey == "" || consumerSecret == "" {
		return &NotConfiguredError{}
	}

	t.mu.Lock()
	t.consumerKey = consumerKey
	t.consumerSecret = consumerSecret
	// A bearer token minted under the previous consumer identity is no
	// longer valid material.
	t.bearer = nil
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Save(creds.Record{ConsumerKey: consumerKey, ConsumerSecret: consumerSecret}); err != nil {
			return fmt.Errorf("persisting consumer credentials: %w", err)
		}
	}

	logging.Info("Tenant", "Consumer credentials configured")
	return nil
}

// StartAuthorization begins the three-legged flow: it obtains a request token
// with a consumer-only signature and an out-of-band callback, stores it as
// the pending token (discarding any prior one), and returns the URL the user
// must visit to approve access.
func (t *Tenant) StartAuthorization(ctx context.Context) (string, error) {
	t.mu.Lock()
	consumer := oauth1.Credentials{ConsumerKey: t.consumerKey, ConsumerSecret: t.consumerSecret}
	t.mu.Unlock()

	if consumer.ConsumerKey == "" || consumer.ConsumerSecret == "" {
		return "", &NotConfiguredError{}
	}

	params := map[string]string{"oauth_callback": oobCallback}
	signed, err := t.signer.Sign(http.MethodGet, t.endpoints.RequestTokenURL, consumer, params, oauth1.PlacementQuery)
	if err != nil {
		return "", fmt.Errorf("signing request-token call: %w", err)
	}

	body, err := t.api.Invoke(ctx, http.MethodGet, t.endpoints.RequestTokenURL, params, platform.AuthMaterial{Params: signed.Params})
	if err != nil {
		return "", fmt.Errorf("request-token exchange: %w", err)
	}

	token, secret, err := parseTokenResponse(body)
	if err != nil {
		return "", fmt.Errorf("request-token exchange: %w", err)
	}

	t.mu.Lock()
	replaced := t.pendingToken != ""
	t.pendingToken = token
	t.pendingSecret = secret
	t.mu.Unlock()

	if replaced {
		logging.Debug("Tenant", "Discarded prior pending request token")
	}
	logging.Info("Tenant", "Authorization started; awaiting user verifier")

	return t.endpoints.AuthorizeURL + "?oauth_token=" + url.QueryEscape(token), nil
}

// CompleteAuthorization exchanges the pending request token plus the
// user-supplied verifier for a permanent user access token, persists it, and
// clears the pending token. On upstream failure the pending token is
// preserved so the caller can retry with a corrected verifier.
func (t *Tenant) CompleteAuthorization(ctx context.Context, verifier string) error {
	if verifier == "" {
		return ErrEmptyVerifier
	}

	t.mu.Lock()
	if t.pendingToken == "" {
		t.mu.Unlock()
		return &NoPendingAuthorizationError{}
	}
	signingCreds := oauth1.Credentials{
		ConsumerKey:    t.consumerKey,
		ConsumerSecret: t.consumerSecret,
		Token:          t.pendingToken,
		TokenSecret:    t.pendingSecret,
	}
	exchanged := t.pendingToken
	t.mu.Unlock()

	params := map[string]string{"oauth_verifier": verifier}
	signed, err := t.signer.Sign(http.MethodGet, t.endpoints.AccessTokenURL, signingCreds, params, oauth1.PlacementQuery)
	if err != nil {
		return fmt.Errorf("signing access-token call: %w", err)
	}

	body, err := t.api.Invoke(ctx, http.MethodGet, t.endpoints.AccessTokenURL, params, platform.AuthMaterial{Params: signed.Params})
	if err != nil {
		return fmt.Errorf("access-token exchange: %w", err)
	}

	token, secret, err := parseTokenResponse(body)
	if err != nil {
		return fmt.Errorf("access-token exchange: %w", err)
	}

	t.mu.Lock()
	t.userToken = token
	t.userSecret = secret
	// Clear the pending slot only if it still holds the token we exchanged;
	// a concurrent re-start owns the slot otherwise.
	if t.pendingToken == exchanged {
		t.pendingToken = ""
		t.pendingSecret = ""
	}
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Save(creds.Record{AccessToken: token, AccessTokenSecret: secret}); err != nil {
			return fmt.Errorf("persisting user access token: %w", err)
		}
	}

	logging.Info("Tenant", "Authorization complete; user access token obtained")
	return nil
}

// Status reports the tenant's authorization state without network calls.
func (t *Tenant) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{
		Configured:           t.consumerKey != "" && t.consumerSecret != "",
		PendingAuthorization: t.pendingToken != "",
		Authorized:           t.userToken != "" && t.userSecret != "",
	}
	switch {
	case s.PendingAuthorization:
		s.State = StatePendingAuthorization
	case s.Authorized:
		s.State = StateAuthorized
	case s.Configured:
		s.State = StateConfigured
	default:
		s.State = StateUnconfigured
	}
	return s
}

// InvokeSigned performs a protected platform call signed with the user
// access token. It fails fast with UnauthorizedError before any network
// traffic when no user token is held.
func (t *Tenant) InvokeSigned(ctx context.Context, httpMethod string, params map[string]string) ([]byte, error) {
	t.mu.Lock()
	signingCreds := oauth1.Credentials{
		ConsumerKey:    t.consumerKey,
		ConsumerSecret: t.consumerSecret,
		Token:          t.userToken,
		TokenSecret:    t.userSecret,
	}
	t.mu.Unlock()

	if signingCreds.ConsumerKey == "" || signingCreds.ConsumerSecret == "" {
		return nil, &NotConfiguredError{}
	}
	if signingCreds.Token == "" || signingCreds.TokenSecret == "" {
		return nil, &UnauthorizedError{}
	}

	signed, err := t.signer.Sign(httpMethod, t.endpoints.APIURL, signingCreds, params, oauth1.PlacementQuery)
	if err != nil {
		return nil, fmt.Errorf("signing platform call: %w", err)
	}

	return t.api.Invoke(ctx, httpMethod, t.endpoints.APIURL, params, platform.AuthMaterial{Params: signed.Params})
}

// InvokeApp performs a platform call authorized by the cached
// client-credentials bearer token, refreshing it if needed.
func (t *Tenant) InvokeApp(ctx context.Context, params map[string]string) ([]byte, error) {
	token, err := t.BearerToken(ctx)
	if err != nil {
		return nil, err
	}
	return t.api.Invoke(ctx, http.MethodGet, t.endpoints.APIURL, params, platform.AuthMaterial{Header: "Bearer " + token})
}

// parseTokenResponse extracts oauth_token/oauth_token_secret from a
// form-encoded token endpoint response.
func parseTokenResponse(body []byte) (token, secret string, err error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", "", fmt.Errorf("malformed token response: %w", err)
	}
	token = values.Get("oauth_token")
	secret = values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return "", "", fmt.Errorf("token response missing oauth_token or oauth_token_secret")
	}
	return token, secret, nil
}
