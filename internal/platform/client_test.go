package platform

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeGetPlacesParamsInQuery(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(0)
	body, err := c.Invoke(context.Background(), "get", srv.URL, map[string]string{"method": "foods.search"}, AuthMaterial{Header: "OAuth x"})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "method=foods.search", gotQuery)
	assert.Equal(t, "OAuth x", gotAuth)
}

func TestInvokePostPlacesParamsInBody(t *testing.T) {
	var gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(0)
	_, err := c.Invoke(context.Background(), "POST", srv.URL, map[string]string{"grant_type": "client_credentials"}, AuthMaterial{})
	require.NoError(t, err)

	assert.Equal(t, "grant_type=client_credentials", gotBody)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
}

func TestInvokeSignedParamsReplaceCallerParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(0)
	_, err := c.Invoke(context.Background(), "GET", srv.URL,
		map[string]string{"unsigned": "1"},
		AuthMaterial{Params: map[string]string{"signed": "1"}})
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "signed=1")
	assert.NotContains(t, gotQuery, "unsigned")
}

func TestInvokeNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid signature"))
	}))
	defer srv.Close()

	c := NewClient(0)
	_, err := c.Invoke(context.Background(), "GET", srv.URL, nil, AuthMaterial{})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.Status)
	assert.Equal(t, "invalid signature", upstream.Body)
	assert.Equal(t, srv.URL, upstream.Endpoint)
}

func TestInvokeHonorsContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(0)
	_, err := c.Invoke(ctx, "GET", srv.URL, nil, AuthMaterial{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
