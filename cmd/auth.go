package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"nutrigate/internal/config"
	"nutrigate/internal/creds"
	"nutrigate/internal/platform"
	"nutrigate/internal/tenant"
	"nutrigate/pkg/logging"
)

// Shared flags for all auth subcommands.
var (
	authConfigPath string
	authQuiet      bool
)

// authCmd is the parent command for authentication management.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage platform credentials and user authorization",
	Long: `Manage the credentials nutrigate uses to call the nutrition platform.

Authentication happens in two steps:

1. 'nutrigate auth configure' stores your application's consumer key and
   consumer secret.
2. 'nutrigate auth login' runs the user authorization flow: it prints a URL
   to open in a browser and asks for the verifier PIN shown after you
   approve access.

'nutrigate auth status' shows where you are in that process. All auth
commands operate on the credential file also used by 'nutrigate serve' in
stdio mode.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Auth commands talk to the terminal; keep log noise down.
		logging.Init(logging.LevelWarn, os.Stderr)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)

	authCmd.PersistentFlags().StringVar(&authConfigPath, "config-path", "", "Custom configuration directory path")
	authCmd.PersistentFlags().BoolVarP(&authQuiet, "quiet", "q", false, "Suppress informational output")

	authCmd.AddCommand(authConfigureCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
}

// loadAuthTenant builds the persisted single-process tenant the auth
// commands operate on, seeded from the credential file and environment
// overrides.
func loadAuthTenant() (*tenant.Tenant, *creds.Store, error) {
	configPath := authConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := creds.NewStore(filepath.Join(configPath, creds.FileName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	tn := tenant.New(tenant.Config{
		API:       platform.NewClient(time.Duration(cfg.Platform.TimeoutSeconds) * time.Second),
		Endpoints: cfg.Platform.Endpoints(),
		Store:     store,
	})

	rec, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	tn.Restore(rec.Merge(config.EnvCredentialOverrides()))

	return tn, store, nil
}

// authPrint writes formatted output unless --quiet is set.
func authPrint(format string, args ...interface{}) {
	if !authQuiet {
		fmt.Printf(format, args...)
	}
}

// authPrintln writes a line of output unless --quiet is set.
func authPrintln(msg string) {
	if !authQuiet {
		fmt.Println(msg)
	}
}
