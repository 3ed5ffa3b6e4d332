package tenant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"nutrigate/internal/platform"
	"nutrigate/pkg/logging"
)

// tokenSafetyMargin is subtracted from a bearer token's reported expiry.
// It absorbs clock skew between systems and the latency of an in-flight
// request, so a token is never used past the point where it could expire
// mid-call.
const tokenSafetyMargin = 60 * time.Second

// grantScope is the scope requested on the client-credentials grant.
const grantScope = "basic"

// grantResponse is the JSON body of a successful client-credentials grant.
type grantResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// BearerToken returns a valid client-credentials bearer token, performing a
// grant against the platform token endpoint when no cached token is usable.
//
// Concurrent callers observing an expired token share a single in-flight
// refresh: the grant never runs twice for one expiry window, and every
// caller receives the refreshed token.
func (t *Tenant) BearerToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.consumerKey == "" || t.consumerSecret == "" {
		t.mu.Unlock()
		return "", &NotConfiguredError{}
	}
	if tok := t.bearer; tok != nil && t.bearerValidLocked(tok) {
		t.mu.Unlock()
		return tok.AccessToken, nil
	}
	t.mu.Unlock()

	v, err, _ := t.refreshGroup.Do("bearer", func() (interface{}, error) {
		// A refresh that completed while this caller queued satisfies it.
		t.mu.Lock()
		if tok := t.bearer; tok != nil && t.bearerValidLocked(tok) {
			t.mu.Unlock()
			return tok.AccessToken, nil
		}
		key, secret := t.consumerKey, t.consumerSecret
		t.mu.Unlock()

		return t.refreshBearer(ctx, key, secret)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// bearerValidLocked reports whether tok is still inside its safety margin.
// Caller must hold t.mu.
func (t *Tenant) bearerValidLocked(tok *oauth2.Token) bool {
	if tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return t.now().Add(tokenSafetyMargin).Before(tok.Expiry)
}

// refreshBearer performs one client-credentials grant and caches the result.
// A non-success response is surfaced as *platform.UpstreamError with the
// status and body; nothing is cached on failure.
func (t *Tenant) refreshBearer(ctx context.Context, key, secret string) (string, error) {
	basic := "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"+secret))
	params := map[string]string{
		"grant_type": "client_credentials",
		"scope":      grantScope,
	}

	body, err := t.api.Invoke(ctx, http.MethodPost, t.endpoints.TokenURL, params, platform.AuthMaterial{Header: basic})
	if err != nil {
		return "", fmt.Errorf("client-credentials grant: %w", err)
	}

	var grant grantResponse
	if err := json.Unmarshal(body, &grant); err != nil {
		return "", fmt.Errorf("client-credentials grant: malformed response: %w", err)
	}
	if grant.AccessToken == "" {
		return "", fmt.Errorf("client-credentials grant: response carried no access token")
	}

	tok := &oauth2.Token{
		AccessToken: grant.AccessToken,
		TokenType:   grant.TokenType,
	}
	if grant.ExpiresIn > 0 {
		tok.Expiry = t.now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	}

	t.mu.Lock()
	t.bearer = tok
	t.mu.Unlock()

	logging.Debug("Tenant", "Bearer token refreshed (expires in %ds)", grant.ExpiresIn)
	return tok.AccessToken, nil
}
