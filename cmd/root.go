package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"nutrigate/internal/platform"
	"nutrigate/internal/tenant"
)

// Exit codes for CLI commands.
// These follow common conventions so scripts can branch on the failure kind.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates credentials or authorization are missing.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the platform rejected an auth exchange.
	ExitCodeAuthFailed = 3
)

// rootCmd represents the base command for the nutrigate application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nutrigate",
	Short: "Broker authenticated nutrition-platform access for AI assistants",
	Long: `nutrigate exposes the FatSecret nutrition platform to AI assistants
over MCP. It handles OAuth 1.0a request signing, the three-legged user
authorization flow, and application-level OAuth2 tokens, so assistants can
call the platform API without ever seeing a credential.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the
// application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "nutrigate version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var notConfigured *tenant.NotConfiguredError
	if errors.As(err, &notConfigured) {
		return ExitCodeAuthRequired
	}

	var unauthorized *tenant.UnauthorizedError
	if errors.As(err, &unauthorized) {
		return ExitCodeAuthRequired
	}

	var noPending *tenant.NoPendingAuthorizationError
	if errors.As(err, &noPending) {
		return ExitCodeAuthRequired
	}

	var upstream *platform.UpstreamError
	if errors.As(err, &upstream) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
