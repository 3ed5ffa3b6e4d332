package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"nutrigate/internal/tenant"
	"nutrigate/pkg/logging"
)

// Session ID validation constants.
const (
	// MaxSessionIDLength is the maximum allowed length for session IDs.
	// This prevents memory exhaustion using extremely long session IDs.
	MaxSessionIDLength = 256

	// DefaultMaxSessions is the default maximum number of concurrent
	// sessions, limiting session-creation abuse.
	DefaultMaxSessions = 10000
)

// Session is one networked tenant: an opaque session identifier bound to an
// isolated, ephemeral credential state. Sessions are Active from creation
// until Close removes them; a closed session's identifier is never reused by
// the registry.
type Session struct {
	ID        string
	CreatedAt time.Time
	Tenant    *tenant.Tenant

	mu           sync.Mutex
	lastActivity time.Time
}

// touch updates the last activity timestamp.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns when the session was last routed to.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// SessionRegistry maps opaque session identifiers to isolated tenants for
// the networked transport.
//
// Every session gets a fresh tenant with no durable storage attached:
// networked tenants are ephemeral by design, so one remote caller can never
// inherit another's authorization or leave credentials on disk.
//
// Sessions are created on first contact (transport registration) and removed
// on explicit close. If the transport never signals closure, sessions
// accumulate; the optional idle sweep (sessionTimeout > 0) exists for
// deployments whose transport cannot guarantee close signaling.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	newTenant      func() *tenant.Tenant
	maxSessions    int
	sessionTimeout time.Duration
	stopCleanup    chan struct{}
}

// SessionNotFoundError is returned when routing to an unknown or closed
// session. This is a client-facing condition: the transport should instruct
// the remote caller to reinitialize, not crash.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return "session not found: " + logging.TruncateSessionID(e.SessionID)
}

// InvalidSessionIDError is returned when a session ID fails validation.
type InvalidSessionIDError struct {
	Reason string
}

func (e *InvalidSessionIDError) Error() string {
	return "invalid session ID: " + e.Reason
}

// SessionLimitExceededError is returned when the maximum session limit is
// reached.
type SessionLimitExceededError struct {
	Limit   int
	Current int
}

func (e *SessionLimitExceededError) Error() string {
	return fmt.Sprintf("session limit exceeded: %d/%d sessions", e.Current, e.Limit)
}

// NewSessionRegistry creates a session registry. newTenant allocates the
// per-session tenant and must not attach durable storage. sessionTimeout
// enables the idle sweep when positive; maxSessions <= 0 selects the
// default limit.
//
// Callers MUST call Stop() when done to release the sweep goroutine.
func NewSessionRegistry(newTenant func() *tenant.Tenant, sessionTimeout time.Duration, maxSessions int) *SessionRegistry {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	sr := &SessionRegistry{
		sessions:       make(map[string]*Session),
		newTenant:      newTenant,
		maxSessions:    maxSessions,
		sessionTimeout: sessionTimeout,
		stopCleanup:    make(chan struct{}),
	}

	if sessionTimeout > 0 {
		go sr.cleanupLoop()
	}

	return sr
}

// ValidateSessionID checks that a session ID is non-empty and within the
// length limit.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return &InvalidSessionIDError{Reason: "session ID cannot be empty"}
	}
	if len(sessionID) > MaxSessionIDLength {
		return &InvalidSessionIDError{Reason: fmt.Sprintf("session ID exceeds maximum length of %d", MaxSessionIDLength)}
	}
	return nil
}

// Create registers a fresh session with an isolated, unpersisted tenant.
// An empty sessionID allocates a new identifier. Creating an already
// registered identifier returns the existing session unchanged.
func (sr *SessionRegistry) Create(sessionID string) (*Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := ValidateSessionID(sessionID); err != nil {
		logging.Warn("SessionRegistry", "Rejected invalid session ID: %v", err)
		return nil, err
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	if existing, ok := sr.sessions[sessionID]; ok {
		return existing, nil
	}

	if len(sr.sessions) >= sr.maxSessions {
		logging.Warn("SessionRegistry", "Session limit reached (%d), rejecting new session: %s",
			sr.maxSessions, logging.TruncateSessionID(sessionID))
		return nil, &SessionLimitExceededError{Limit: sr.maxSessions, Current: len(sr.sessions)}
	}

	now := time.Now()
	session := &Session{
		ID:           sessionID,
		CreatedAt:    now,
		lastActivity: now,
		Tenant:       sr.newTenant(),
	}
	sr.sessions[sessionID] = session
	logging.Debug("SessionRegistry", "Created session: %s (total: %d)",
		logging.TruncateSessionID(sessionID), len(sr.sessions))

	return session, nil
}

// Route looks up an existing session. Unknown identifiers yield
// *SessionNotFoundError.
func (sr *SessionRegistry) Route(sessionID string) (*Session, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	sr.mu.RLock()
	session, exists := sr.sessions[sessionID]
	sr.mu.RUnlock()

	if !exists {
		return nil, &SessionNotFoundError{SessionID: sessionID}
	}
	session.touch()
	return session, nil
}

// Close removes a session. The tenant and its in-memory credentials are
// dropped; nothing was ever persisted for it. Closing an unknown session is
// a no-op.
func (sr *SessionRegistry) Close(sessionID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, exists := sr.sessions[sessionID]; !exists {
		return
	}
	delete(sr.sessions, sessionID)
	logging.Debug("SessionRegistry", "Closed session: %s (total: %d)",
		logging.TruncateSessionID(sessionID), len(sr.sessions))
}

// Count returns the number of active sessions.
func (sr *SessionRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.sessions)
}

// Stop stops the registry and drops all sessions.
func (sr *SessionRegistry) Stop() {
	if sr.sessionTimeout > 0 {
		close(sr.stopCleanup)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.sessions = make(map[string]*Session)
	logging.Debug("SessionRegistry", "Session registry stopped")
}

// minCleanupInterval keeps the sweep from running excessively often when
// the timeout is very short.
const minCleanupInterval = time.Second

func (sr *SessionRegistry) cleanupLoop() {
	cleanupInterval := sr.sessionTimeout / 2
	if cleanupInterval < minCleanupInterval {
		cleanupInterval = minCleanupInterval
	}
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sr.cleanup()
		case <-sr.stopCleanup:
			return
		}
	}
}

// cleanup removes sessions idle past the timeout.
func (sr *SessionRegistry) cleanup() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	now := time.Now()
	count := 0
	for sessionID, session := range sr.sessions {
		if now.Sub(session.LastActivity()) > sr.sessionTimeout {
			delete(sr.sessions, sessionID)
			count++
		}
	}

	if count > 0 {
		logging.Debug("SessionRegistry", "Cleaned up %d idle sessions", count)
	}
}
