package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"nutrigate/internal/config"
	"nutrigate/internal/creds"
	"nutrigate/internal/gateway"
	"nutrigate/pkg/logging"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath specifies a custom configuration directory path.
// When set, config.yaml and credentials.json are read from this directory
// instead of the user config directory.
var serveConfigPath string

// Transport overrides for the gateway; empty/zero keeps the configured value.
var (
	serveTransport string
	serveHost      string
	servePort      int
)

// serveCmd starts the MCP gateway on the configured transport.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the nutrigate MCP gateway",
	Long: `Starts the MCP gateway that brokers platform access for AI assistants.

Two transports are available:

1. stdio (default):
   - Serves a single local caller over stdin/stdout.
   - Authorization state is persisted to the credential file, and a login
     performed with 'nutrigate auth login' in another terminal is picked up
     automatically.

2. streamable-http:
   - Serves remote callers over HTTP; each MCP session gets its own isolated,
     in-memory credential state that is discarded when the session ends.
   - The credential file is never read or written in this mode.

Configuration is read from config.yaml in the user config directory
(~/.config/nutrigate) or the directory given with --config-path. Flags
override the configured transport, host, and port.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	configPath := serveConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if serveTransport != "" {
		cfg.Gateway.Transport = serveTransport
	}
	if serveHost != "" {
		cfg.Gateway.Host = serveHost
	}
	if servePort != 0 {
		cfg.Gateway.Port = servePort
	}

	// Over stdio the protocol owns stdout, so logs must go to stderr.
	logLevel := logging.LevelInfo
	if serveDebug {
		logLevel = logging.LevelDebug
	}
	logging.Init(logLevel, os.Stderr)

	var store *creds.Store
	if cfg.Gateway.Transport == config.TransportStdio {
		store, err = creds.NewStore(filepath.Join(configPath, creds.FileName))
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
	}

	srv, err := gateway.NewServer(cfg, GetVersion(), store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return srv.Stop(cmd.Context())
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Custom configuration directory path")
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Transport to use: stdio or streamable-http (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind the streamable-http transport to (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port for the streamable-http transport (overrides config)")
}
