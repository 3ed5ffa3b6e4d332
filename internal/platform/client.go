package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nutrigate/pkg/logging"
)

// defaultTimeout bounds a single platform call when the caller's context
// carries no deadline of its own.
const defaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of an upstream response is read. Platform
// responses are small; the cap keeps a misbehaving endpoint from exhausting
// memory.
const maxResponseBytes = 4 << 20

// AuthMaterial is the authorization produced by the credential core for one
// request. Exactly one of the two shapes is populated.
type AuthMaterial struct {
	// Header is a ready-to-send Authorization header value
	// ("OAuth ...", "Bearer ...", or "Basic ...").
	Header string

	// Params, when non-nil, replaces the request's parameter set with a
	// pre-signed merge of caller parameters and oauth_* parameters.
	Params map[string]string
}

// UpstreamError reports a non-success response from a platform endpoint.
// The status and body are preserved verbatim for diagnostics; the core never
// retries.
type UpstreamError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("upstream %s returned %d: %s", e.Endpoint, e.Status, body)
}

// Invoker is the uniform contract the credential core calls the platform
// through. Implementations transmit the request exactly as given; parameter
// payloads are opaque to this layer.
type Invoker interface {
	Invoke(ctx context.Context, method, rawURL string, params map[string]string, auth AuthMaterial) ([]byte, error)
}

// Client is the HTTP implementation of Invoker.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a platform client. A zero timeout selects the default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Invoke performs one platform call. GET and DELETE requests carry params in
// the query string; POST and PUT carry them as a form-encoded body. The
// caller's context flows through to the transport, so cancellation and
// deadlines apply to the whole exchange.
//
// A non-2xx response yields *UpstreamError with the status and body.
func (c *Client) Invoke(ctx context.Context, method, rawURL string, params map[string]string, auth AuthMaterial) ([]byte, error) {
	method = strings.ToUpper(method)

	effective := params
	if auth.Params != nil {
		effective = auth.Params
	}

	values := url.Values{}
	for k, v := range effective {
		values.Set(k, v)
	}

	var (
		requestURL = rawURL
		body       io.Reader
	)
	switch method {
	case http.MethodPost, http.MethodPut:
		body = strings.NewReader(values.Encode())
	default:
		if len(values) > 0 {
			requestURL = rawURL + "?" + values.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("platform: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if auth.Header != "" {
		req.Header.Set("Authorization", auth.Header)
	}

	logging.Debug("Platform", "%s %s (%d params)", method, rawURL, len(effective))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform: %s %s: %w", method, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("platform: reading response from %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Endpoint: rawURL,
			Status:   resp.StatusCode,
			Body:     string(respBody),
		}
	}

	return respBody, nil
}
