package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Login-specific flags.
var loginVerifier string

// authLoginCmd represents the auth login command.
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize nutrigate to access your platform account",
	Long: `Run the user authorization flow against the nutrition platform.

The command requests a temporary token, prints the URL where you approve
access, and asks for the verifier PIN the platform displays afterwards. On
success the long-lived user access token is written to the credential file.

Examples:
  nutrigate auth login                     # interactive: prompts for the PIN
  nutrigate auth login --verifier 123456   # non-interactive, for scripting a
                                           # flow started in the same session`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().StringVar(&loginVerifier, "verifier", "", "Verifier PIN from a previously opened authorization URL")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tn, _, err := loadAuthTenant()
	if err != nil {
		return err
	}

	authURL, err := withSpinner("Requesting authorization token...", func() (string, error) {
		return tn.StartAuthorization(ctx)
	})
	if err != nil {
		return err
	}

	authPrintln("Open this URL in a browser and approve access:")
	authPrint("\n  %s\n\n", text.FgCyan.Sprint(authURL))

	verifier := loginVerifier
	if verifier == "" {
		verifier, err = promptLine("Verifier PIN: ")
		if err != nil {
			return err
		}
	}

	_, err = withSpinner("Exchanging verifier for access token...", func() (string, error) {
		return "", tn.CompleteAuthorization(ctx, verifier)
	})
	if err != nil {
		return err
	}

	authPrintln(text.FgGreen.Sprint("Authorization complete."))
	authPrintln("User-scoped API access is now available.")
	return nil
}

// withSpinner runs fn with a progress spinner unless --quiet is set.
func withSpinner(message string, fn func() (string, error)) (string, error) {
	if authQuiet {
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Start()
	defer s.Stop()

	result, err := fn()
	if err != nil {
		s.FinalMSG = text.FgRed.Sprint("Failed: ") + fmt.Sprintf("%v", err) + "\n"
	}
	return result, err
}
