package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrigate/internal/config"
	"nutrigate/internal/creds"
	"nutrigate/internal/platform"
	"nutrigate/internal/tenant"
)

// scriptedInvoker is a scripted platform transport with a call counter.
type scriptedInvoker struct {
	mu      sync.Mutex
	calls   int
	handler func(method, rawURL string, params map[string]string, auth platform.AuthMaterial) ([]byte, error)
}

func (f *scriptedInvoker) Invoke(ctx context.Context, method, rawURL string, params map[string]string, auth platform.AuthMaterial) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.handler == nil {
		return nil, fmt.Errorf("unexpected call to %s", rawURL)
	}
	return f.handler(method, rawURL, params, auth)
}

func (f *scriptedInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func gatewayTestEndpoints() tenant.Endpoints {
	return tenant.Endpoints{
		RequestTokenURL: "https://auth.test/oauth/request_token",
		AccessTokenURL:  "https://auth.test/oauth/access_token",
		AuthorizeURL:    "https://auth.test/oauth/authorize",
		TokenURL:        "https://auth.test/connect/token",
		APIURL:          "https://api.test/rest/server.api",
	}
}

// newStdioTestServer builds a gateway server in stdio mode with an in-memory
// tenant, bypassing transport startup.
func newStdioTestServer(api platform.Invoker) *Server {
	eps := gatewayTestEndpoints()
	cfg := config.GetDefaultConfig()
	return &Server{
		cfg:       cfg,
		api:       api,
		endpoints: eps,
		local:     tenant.New(tenant.Config{API: api, Endpoints: eps}),
	}
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return textContent.Text
}

// authEndpointHandler serves the three-legged token exchanges and the
// protected API endpoint.
func authEndpointHandler() func(method, rawURL string, params map[string]string, auth platform.AuthMaterial) ([]byte, error) {
	return func(method, rawURL string, params map[string]string, auth platform.AuthMaterial) ([]byte, error) {
		switch {
		case strings.Contains(rawURL, "request_token"):
			return []byte("oauth_token=req-1&oauth_token_secret=req-secret-1"), nil
		case strings.Contains(rawURL, "access_token"):
			if auth.Params["oauth_verifier"] != "123456" {
				return nil, &platform.UpstreamError{Endpoint: rawURL, Status: 401, Body: "invalid verifier"}
			}
			return []byte("oauth_token=user-token&oauth_token_secret=user-secret"), nil
		case strings.Contains(rawURL, "connect/token"):
			return []byte(`{"access_token":"bearer-1","token_type":"Bearer","expires_in":3600}`), nil
		default:
			return []byte(`{"foods":{}}`), nil
		}
	}
}

func TestAuthConfigureValidation(t *testing.T) {
	s := newStdioTestServer(&scriptedInvoker{})

	result, err := s.handleAuthConfigure(context.Background(), toolRequest(map[string]interface{}{
		"consumer_secret": "secret",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "consumer_key")
}

func TestAuthFlowThroughTools(t *testing.T) {
	api := &scriptedInvoker{handler: authEndpointHandler()}
	s := newStdioTestServer(api)
	ctx := context.Background()

	result, err := s.handleAuthConfigure(ctx, toolRequest(map[string]interface{}{
		"consumer_key":    "key",
		"consumer_secret": "secret",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = s.handleAuthStart(ctx, toolRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var started map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &started))
	assert.Equal(t, "https://auth.test/oauth/authorize?oauth_token=req-1", started["authorization_url"])

	result, err = s.handleAuthStatus(ctx, toolRequest(nil))
	require.NoError(t, err)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &status))
	assert.Equal(t, "pending_authorization", status["state"])

	result, err = s.handleAuthComplete(ctx, toolRequest(map[string]interface{}{
		"verifier": " 123456 ", // surrounding whitespace is tolerated
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	result, err = s.handleAuthStatus(ctx, toolRequest(nil))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &status))
	assert.Equal(t, "authorized", status["state"])
	assert.Equal(t, true, status["authorized"])
}

func TestAPICallRequiresAuthorization(t *testing.T) {
	api := &scriptedInvoker{}
	s := newStdioTestServer(api)
	ctx := context.Background()

	_, err := s.handleAuthConfigure(ctx, toolRequest(map[string]interface{}{
		"consumer_key":    "key",
		"consumer_secret": "secret",
	}))
	require.NoError(t, err)

	result, err := s.handleAPICall(ctx, toolRequest(map[string]interface{}{
		"params": map[string]interface{}{"method": "foods.search"},
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Zero(t, api.callCount(), "unauthorized calls must not reach the network")
}

func TestAPICallPassesParams(t *testing.T) {
	var seen platform.AuthMaterial
	api := &scriptedInvoker{handler: func(method, rawURL string, params map[string]string, auth platform.AuthMaterial) ([]byte, error) {
		seen = auth
		return []byte(`{"foods":{}}`), nil
	}}
	s := newStdioTestServer(api)
	s.local.Restore(creds.Record{
		ConsumerKey:       "key",
		ConsumerSecret:    "secret",
		AccessToken:       "user-token",
		AccessTokenSecret: "user-secret",
	})

	result, err := s.handleAPICall(context.Background(), toolRequest(map[string]interface{}{
		"params": map[string]interface{}{
			"method":      "foods.search",
			"max_results": float64(5),
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, `{"foods":{}}`, resultText(t, result))

	assert.Equal(t, "foods.search", seen.Params["method"])
	assert.Equal(t, "5", seen.Params["max_results"])
}

func TestAPICallRejectsBadHTTPMethod(t *testing.T) {
	s := newStdioTestServer(&scriptedInvoker{})

	result, err := s.handleAPICall(context.Background(), toolRequest(map[string]interface{}{
		"params":      map[string]interface{}{"method": "foods.search"},
		"http_method": "DELETE",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "GET or POST")
}

func TestExtractParamsRejectsNestedObjects(t *testing.T) {
	_, err := extractParams(map[string]interface{}{
		"params": map[string]interface{}{
			"nested": map[string]interface{}{"a": "b"},
		},
	})
	assert.Error(t, err)

	_, err = extractParams(map[string]interface{}{})
	assert.Error(t, err)
}

func TestAPICallAppUsesApplicationToken(t *testing.T) {
	var authHeaders []string
	api := &scriptedInvoker{handler: func(method, rawURL string, params map[string]string, auth platform.AuthMaterial) ([]byte, error) {
		authHeaders = append(authHeaders, auth.Header)
		if strings.Contains(rawURL, "connect/token") {
			return []byte(`{"access_token":"bearer-1","token_type":"Bearer","expires_in":3600}`), nil
		}
		return []byte(`{"foods":{}}`), nil
	}}
	s := newStdioTestServer(api)
	ctx := context.Background()

	_, err := s.handleAuthConfigure(ctx, toolRequest(map[string]interface{}{
		"consumer_key":    "key",
		"consumer_secret": "secret",
	}))
	require.NoError(t, err)

	result, err := s.handleAPICallApp(ctx, toolRequest(map[string]interface{}{
		"params": map[string]interface{}{"method": "foods.search"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, `{"foods":{}}`, resultText(t, result))
	require.Len(t, authHeaders, 2)
	assert.Equal(t, "Bearer bearer-1", authHeaders[1])
}

func TestSessionTenantsNeverTouchDurableStorage(t *testing.T) {
	dir := t.TempDir()
	credPath := filepath.Join(dir, creds.FileName)
	store, err := creds.NewStore(credPath)
	require.NoError(t, err)

	cfg := config.GetDefaultConfig()
	cfg.Gateway.Transport = config.TransportStreamableHTTP
	s, err := NewServer(cfg, "test", store)
	require.NoError(t, err)
	t.Cleanup(s.sessions.Stop)

	sess, err := s.sessions.Create("remote-session")
	require.NoError(t, err)
	require.NoError(t, sess.Tenant.Configure("remote-key", "remote-secret"))

	_, statErr := os.Stat(credPath)
	assert.True(t, os.IsNotExist(statErr),
		"a networked session must never write the credential file")
}

func TestNetworkedCallWithoutSessionFails(t *testing.T) {
	api := &scriptedInvoker{}
	s := newStdioTestServer(api)
	s.local = nil
	s.sessions = NewSessionRegistry(func() *tenant.Tenant {
		return tenant.New(tenant.Config{API: api, Endpoints: gatewayTestEndpoints()})
	}, 0, 0)
	t.Cleanup(s.sessions.Stop)

	result, err := s.handleAuthStatus(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "session not found")
}
