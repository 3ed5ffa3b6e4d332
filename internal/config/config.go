package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"nutrigate/internal/creds"
	"nutrigate/internal/tenant"
	"nutrigate/pkg/logging"
)

const (
	userConfigDir  = ".config/nutrigate"
	configFileName = "config.yaml"
)

const (
	// TransportStdio runs the gateway over stdin/stdout with a single
	// persisted tenant.
	TransportStdio = "stdio"
	// TransportStreamableHTTP runs the gateway as an HTTP server with one
	// ephemeral tenant per MCP session.
	TransportStreamableHTTP = "streamable-http"
)

// Config is the top-level configuration structure for nutrigate.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Platform PlatformConfig `yaml:"platform"`
}

// GatewayConfig defines transport and session behavior for the MCP gateway.
type GatewayConfig struct {
	Host      string `yaml:"host,omitempty"`      // Host to bind to (default: localhost)
	Port      int    `yaml:"port,omitempty"`      // Port for the streamable-http endpoint (default: 8085)
	Transport string `yaml:"transport,omitempty"` // Transport to use (default: stdio)

	// MaxSessions caps concurrent networked sessions (default: 10000).
	MaxSessions int `yaml:"maxSessions,omitempty"`

	// SessionTimeoutMinutes enables the idle-session sweep when positive.
	// Zero disables it: sessions then live until the transport signals
	// closure, and leak if it never does.
	SessionTimeoutMinutes int `yaml:"sessionTimeoutMinutes,omitempty"`
}

// PlatformConfig defines the upstream platform endpoints and transport
// limits. Endpoint overrides exist for testing against fakes.
type PlatformConfig struct {
	RequestTokenURL string `yaml:"requestTokenUrl,omitempty"`
	AccessTokenURL  string `yaml:"accessTokenUrl,omitempty"`
	AuthorizeURL    string `yaml:"authorizeUrl,omitempty"`
	TokenURL        string `yaml:"tokenUrl,omitempty"`
	APIURL          string `yaml:"apiUrl,omitempty"`

	TimeoutSeconds int `yaml:"timeoutSeconds,omitempty"` // Per-call HTTP timeout (default: 30)
}

// GetDefaultConfig returns the built-in defaults.
func GetDefaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			Host:        "localhost",
			Port:        8085,
			Transport:   TransportStdio,
			MaxSessions: 10000,
		},
		Platform: PlatformConfig{
			TimeoutSeconds: 30,
		},
	}
}

// GetDefaultConfigPathOrPanic returns the per-user config directory.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}
	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from the given directory, overlaying
// config.yaml (when present) onto the defaults.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// Endpoints resolves the platform endpoint set, falling back to the
// platform defaults for any endpoint not overridden.
func (p PlatformConfig) Endpoints() tenant.Endpoints {
	eps := tenant.DefaultEndpoints()
	if p.RequestTokenURL != "" {
		eps.RequestTokenURL = p.RequestTokenURL
	}
	if p.AccessTokenURL != "" {
		eps.AccessTokenURL = p.AccessTokenURL
	}
	if p.AuthorizeURL != "" {
		eps.AuthorizeURL = p.AuthorizeURL
	}
	if p.TokenURL != "" {
		eps.TokenURL = p.TokenURL
	}
	if p.APIURL != "" {
		eps.APIURL = p.APIURL
	}
	return eps
}

// Environment variable names for runtime credential overrides. These take
// priority over the persisted credential record, field by field, and are
// never written back to disk.
const (
	EnvConsumerKey       = "NUTRIGATE_CONSUMER_KEY"
	EnvConsumerSecret    = "NUTRIGATE_CONSUMER_SECRET"
	EnvAccessToken       = "NUTRIGATE_ACCESS_TOKEN"
	EnvAccessTokenSecret = "NUTRIGATE_ACCESS_TOKEN_SECRET"
)

// EnvCredentialOverrides collects runtime credential overrides from the
// environment.
func EnvCredentialOverrides() creds.Record {
	return creds.Record{
		ConsumerKey:       os.Getenv(EnvConsumerKey),
		ConsumerSecret:    os.Getenv(EnvConsumerSecret),
		AccessToken:       os.Getenv(EnvAccessToken),
		AccessTokenSecret: os.Getenv(EnvAccessTokenSecret),
	}
}
