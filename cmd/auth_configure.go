package cmd

import (
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

// Configure-specific flags.
var (
	configureConsumerKey    string
	configureConsumerSecret string
)

// authConfigureCmd represents the auth configure command.
var authConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store the platform consumer key and secret",
	Long: `Store the application's consumer key and consumer secret.

The values are written to the credential file with owner-only permissions.
An existing user authorization is kept, so rotating the consumer secret does
not force a re-login.

Examples:
  nutrigate auth configure                                  # prompt for both values
  nutrigate auth configure --consumer-key K --consumer-secret S`,
	Args: cobra.NoArgs,
	RunE: runAuthConfigure,
}

func init() {
	authConfigureCmd.Flags().StringVar(&configureConsumerKey, "consumer-key", "", "The application's consumer key")
	authConfigureCmd.Flags().StringVar(&configureConsumerSecret, "consumer-secret", "", "The application's consumer secret")
}

func runAuthConfigure(cmd *cobra.Command, args []string) error {
	consumerKey := configureConsumerKey
	consumerSecret := configureConsumerSecret

	var err error
	if consumerKey == "" {
		consumerKey, err = promptLine("Consumer key: ")
		if err != nil {
			return err
		}
	}
	if consumerSecret == "" {
		consumerSecret, err = promptSecret("Consumer secret: ")
		if err != nil {
			return err
		}
	}

	if consumerKey == "" || consumerSecret == "" {
		return fmt.Errorf("both consumer key and consumer secret are required")
	}

	tn, store, err := loadAuthTenant()
	if err != nil {
		return err
	}

	if err := tn.Configure(consumerKey, consumerSecret); err != nil {
		return err
	}

	authPrint("Consumer credentials saved to %s\n", store.Path())
	authPrintln("Run 'nutrigate auth login' to authorize user access.")
	return nil
}

// promptLine reads one line of interactive input.
func promptLine(prompt string) (string, error) {
	rl, err := readline.New(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to open terminal for input: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads one line of input without echoing it.
func promptSecret(prompt string) (string, error) {
	rl, err := readline.New("")
	if err != nil {
		return "", fmt.Errorf("failed to open terminal for input: %w", err)
	}
	defer rl.Close()

	value, err := rl.ReadPassword(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(value)), nil
}
