package cmd

import (
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"nutrigate/internal/tenant"
)

// authStatusCmd represents the auth status command.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show credential and authorization status",
	Long: `Show the state of the persisted credentials: whether consumer
credentials are stored, whether an authorization is waiting for its
verifier, and whether a user access token is held.

The state is read locally; no platform call is made.`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	tn, store, err := loadAuthTenant()
	if err != nil {
		return err
	}

	status := tn.Status()

	authPrintln("Nutrition Platform")
	authPrint("  Credentials:  %s\n", store.Path())
	authPrint("  State:        %s\n", renderState(status.State))

	authPrint("  Consumer:     %s\n", renderBool(status.Configured, "configured", "not configured"))
	authPrint("  User token:   %s\n", renderBool(status.Authorized, "present", "absent"))
	if status.PendingAuthorization {
		authPrint("  Pending:      %s\n", text.FgYellow.Sprint("authorization started, waiting for verifier"))
	}

	switch status.State {
	case tenant.StateUnconfigured:
		authPrintln("\nRun: nutrigate auth configure")
	case tenant.StateConfigured, tenant.StatePendingAuthorization:
		authPrintln("\nRun: nutrigate auth login")
	}

	return nil
}

func renderState(state tenant.State) string {
	switch state {
	case tenant.StateAuthorized:
		return text.FgGreen.Sprint(string(state))
	case tenant.StateUnconfigured:
		return text.FgRed.Sprint(string(state))
	default:
		return text.FgYellow.Sprint(string(state))
	}
}

func renderBool(ok bool, yes, no string) string {
	if ok {
		return text.FgGreen.Sprint(yes)
	}
	return text.FgRed.Sprint(no)
}
