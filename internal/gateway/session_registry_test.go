package gateway

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrigate/internal/platform"
	"nutrigate/internal/tenant"
)

// nopInvoker satisfies platform.Invoker for tenants that never reach the
// network in a test.
type nopInvoker struct{}

func (nopInvoker) Invoke(ctx context.Context, method, rawURL string, params map[string]string, auth platform.AuthMaterial) ([]byte, error) {
	return nil, fmt.Errorf("unexpected network call to %s", rawURL)
}

func newEphemeralTenant() *tenant.Tenant {
	return tenant.New(tenant.Config{API: nopInvoker{}})
}

func newTestRegistry(t *testing.T, maxSessions int) *SessionRegistry {
	t.Helper()
	sr := NewSessionRegistry(newEphemeralTenant, 0, maxSessions)
	t.Cleanup(sr.Stop)
	return sr
}

func TestCreateAndRoute(t *testing.T) {
	sr := newTestRegistry(t, 0)

	created, err := sr.Create("session-1")
	require.NoError(t, err)
	require.NotNil(t, created.Tenant)

	routed, err := sr.Route("session-1")
	require.NoError(t, err)
	assert.Same(t, created, routed)
	assert.Equal(t, 1, sr.Count())
}

func TestRouteUnknownSession(t *testing.T) {
	sr := newTestRegistry(t, 0)

	_, err := sr.Route("never-created")

	var notFound *SessionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "never-created", notFound.SessionID)
}

func TestCloseThenRoute(t *testing.T) {
	sr := newTestRegistry(t, 0)

	_, err := sr.Create("session-1")
	require.NoError(t, err)

	sr.Close("session-1")
	sr.Close("session-1") // closing again is a no-op

	_, err = sr.Route("session-1")
	var notFound *SessionNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, 0, sr.Count())
}

func TestSessionsAreIsolated(t *testing.T) {
	sr := newTestRegistry(t, 0)

	a, err := sr.Create("session-a")
	require.NoError(t, err)
	b, err := sr.Create("session-b")
	require.NoError(t, err)

	require.NoError(t, a.Tenant.Configure("key-a", "secret-a"))

	assert.Equal(t, tenant.StateConfigured, a.Tenant.Status().State)
	assert.Equal(t, tenant.StateUnconfigured, b.Tenant.Status().State,
		"configuring one session must not leak into another")
}

func TestCreateGeneratesIDWhenEmpty(t *testing.T) {
	sr := newTestRegistry(t, 0)

	session, err := sr.Create("")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)

	routed, err := sr.Route(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, routed)
}

func TestCreateExistingReturnsSameSession(t *testing.T) {
	sr := newTestRegistry(t, 0)

	first, err := sr.Create("session-1")
	require.NoError(t, err)
	second, err := sr.Create("session-1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, sr.Count())
}

func TestValidateSessionID(t *testing.T) {
	assert.Error(t, ValidateSessionID(""))
	assert.Error(t, ValidateSessionID(strings.Repeat("x", MaxSessionIDLength+1)))
	assert.NoError(t, ValidateSessionID(strings.Repeat("x", MaxSessionIDLength)))
}

func TestSessionLimit(t *testing.T) {
	sr := newTestRegistry(t, 2)

	_, err := sr.Create("session-1")
	require.NoError(t, err)
	_, err = sr.Create("session-2")
	require.NoError(t, err)

	_, err = sr.Create("session-3")
	var limitErr *SessionLimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 2, limitErr.Limit)

	// Closing a session frees capacity.
	sr.Close("session-1")
	_, err = sr.Create("session-3")
	assert.NoError(t, err)
}

func TestIdleCleanup(t *testing.T) {
	sr := NewSessionRegistry(newEphemeralTenant, time.Minute, 0)
	t.Cleanup(sr.Stop)

	stale, err := sr.Create("stale")
	require.NoError(t, err)
	_, err = sr.Create("fresh")
	require.NoError(t, err)

	stale.mu.Lock()
	stale.lastActivity = time.Now().Add(-2 * time.Minute)
	stale.mu.Unlock()

	sr.cleanup()

	_, err = sr.Route("stale")
	var notFound *SessionNotFoundError
	assert.ErrorAs(t, err, &notFound)
	_, err = sr.Route("fresh")
	assert.NoError(t, err)
}

func TestStopDropsAllSessions(t *testing.T) {
	sr := NewSessionRegistry(newEphemeralTenant, 0, 0)

	_, err := sr.Create("session-1")
	require.NoError(t, err)

	sr.Stop()
	assert.Equal(t, 0, sr.Count())
}
