package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"nutrigate/internal/config"
	"nutrigate/internal/creds"
	"nutrigate/internal/platform"
	"nutrigate/internal/tenant"
	"nutrigate/pkg/logging"
)

// Server exposes the platform gateway as an MCP server.
//
// Transport decides tenancy. Over stdio the process serves one local caller
// and routes every tool call to a single tenant backed by the credential
// store. Over streamable-http each MCP session gets its own ephemeral tenant
// from the session registry; those tenants never touch durable storage, so a
// remote caller can neither read nor overwrite the operator's credentials.
type Server struct {
	cfg     config.Config
	version string

	api       platform.Invoker
	endpoints tenant.Endpoints
	store     *creds.Store

	server               *server.MCPServer
	stdioServer          *server.StdioServer
	streamableHTTPServer *server.StreamableHTTPServer

	// local is the persisted tenant used by the stdio transport.
	local *tenant.Tenant

	// sessions holds the ephemeral tenants used by the streamable-http
	// transport.
	sessions *SessionRegistry

	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// NewServer wires a gateway server from configuration. store may be nil for
// the streamable-http transport, which never persists; the stdio transport
// requires it.
func NewServer(cfg config.Config, version string, store *creds.Store) (*Server, error) {
	if cfg.Gateway.Transport == config.TransportStdio && store == nil {
		return nil, fmt.Errorf("stdio transport requires a credential store")
	}

	endpoints := cfg.Platform.Endpoints()
	api := platform.NewClient(time.Duration(cfg.Platform.TimeoutSeconds) * time.Second)

	s := &Server{
		cfg:       cfg,
		version:   version,
		api:       api,
		endpoints: endpoints,
		store:     store,
	}

	switch cfg.Gateway.Transport {
	case config.TransportStdio:
		s.local = tenant.New(tenant.Config{
			API:       api,
			Endpoints: endpoints,
			Store:     store,
		})
		rec, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load credentials: %w", err)
		}
		s.local.Restore(rec.Merge(config.EnvCredentialOverrides()))

	case config.TransportStreamableHTTP:
		s.sessions = NewSessionRegistry(
			s.newSessionTenant,
			time.Duration(cfg.Gateway.SessionTimeoutMinutes)*time.Minute,
			cfg.Gateway.MaxSessions,
		)

	default:
		return nil, fmt.Errorf("unknown transport: %s", cfg.Gateway.Transport)
	}

	return s, nil
}

// newSessionTenant allocates a tenant for one networked session. No store is
// attached: session tenants must never read or write durable credentials.
func (s *Server) newSessionTenant() *tenant.Tenant {
	return tenant.New(tenant.Config{
		API:       s.api,
		Endpoints: s.endpoints,
	})
}

// Start starts the MCP server on the configured transport. It returns once
// the transport is listening; use Stop to shut down.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return fmt.Errorf("gateway server already started")
	}

	s.ctx, s.cancelFunc = context.WithCancel(ctx)

	hooks := &server.Hooks{}
	hooks.AddOnRegisterSession(s.onRegisterSession)
	hooks.AddOnUnregisterSession(s.onUnregisterSession)

	mcpServer := server.NewMCPServer(
		"nutrigate",
		s.version,
		server.WithToolCapabilities(false),
		server.WithHooks(hooks),
	)
	mcpServer.AddTools(s.tools()...)
	s.server = mcpServer
	s.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)

	switch s.cfg.Gateway.Transport {
	case config.TransportStdio:
		logging.Info("Gateway", "Starting MCP gateway with stdio transport")
		s.watchCredentials()
		s.stdioServer = server.NewStdioServer(mcpServer)
		stdioServer := s.stdioServer
		go func() {
			if err := stdioServer.Listen(s.ctx, os.Stdin, os.Stdout); err != nil {
				logging.Error("Gateway", err, "Stdio server error")
			}
		}()

	case config.TransportStreamableHTTP:
		logging.Info("Gateway", "Starting MCP gateway with streamable-http transport on %s", addr)
		s.streamableHTTPServer = server.NewStreamableHTTPServer(mcpServer)
		streamableServer := s.streamableHTTPServer
		go func() {
			if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("Gateway", err, "Streamable HTTP server error")
			}
		}()
	}

	return nil
}

// Stop stops the gateway server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.server == nil {
		s.mu.Unlock()
		return fmt.Errorf("gateway server not started")
	}
	cancelFunc := s.cancelFunc
	streamableServer := s.streamableHTTPServer
	s.mu.Unlock()

	logging.Info("Gateway", "Stopping MCP gateway server")

	if cancelFunc != nil {
		cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if streamableServer != nil {
		if err := streamableServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Gateway", err, "Error shutting down streamable HTTP server")
		}
	}

	// Stdio server stops on context cancellation, no explicit shutdown needed.

	if s.sessions != nil {
		s.sessions.Stop()
	}

	s.mu.Lock()
	s.server = nil
	s.stdioServer = nil
	s.streamableHTTPServer = nil
	s.mu.Unlock()

	return nil
}

// watchCredentials reloads the local tenant when the credential file changes
// on disk, so a login performed by the CLI is picked up by a running stdio
// gateway without a restart.
func (s *Server) watchCredentials() {
	err := s.store.Watch(s.ctx, func(rec creds.Record) {
		s.local.Restore(rec.Merge(config.EnvCredentialOverrides()))
	})
	if err != nil {
		logging.Warn("Gateway", "Credential file watching unavailable: %v", err)
	}
}

// onRegisterSession allocates an ephemeral tenant when a streamable-http
// session connects. The transport supplies the session identifier.
func (s *Server) onRegisterSession(ctx context.Context, session server.ClientSession) {
	if s.sessions == nil {
		return
	}
	if _, err := s.sessions.Create(session.SessionID()); err != nil {
		logging.Warn("Gateway", "Failed to register session %s: %v",
			logging.TruncateSessionID(session.SessionID()), err)
	}
}

// onUnregisterSession drops the session's tenant and everything it held.
func (s *Server) onUnregisterSession(ctx context.Context, session server.ClientSession) {
	if s.sessions == nil {
		return
	}
	s.sessions.Close(session.SessionID())
}

// tenantFromContext resolves the tenant a tool call operates on. Over stdio
// this is always the local persisted tenant; over streamable-http it is the
// calling session's ephemeral tenant, created on first contact if the
// registration hook has not fired yet.
func (s *Server) tenantFromContext(ctx context.Context) (*tenant.Tenant, error) {
	if s.sessions == nil {
		return s.local, nil
	}

	clientSession := server.ClientSessionFromContext(ctx)
	if clientSession == nil {
		return nil, &SessionNotFoundError{}
	}

	sess, err := s.sessions.Route(clientSession.SessionID())
	if err != nil {
		var notFound *SessionNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		sess, err = s.sessions.Create(clientSession.SessionID())
		if err != nil {
			return nil, err
		}
	}
	return sess.Tenant, nil
}
