package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the Cobra command for displaying the application version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of nutrigate",
		Run: func(cmd *cobra.Command, args []string) {
			// rootCmd.Version is set in main.go during build time.
			fmt.Fprintf(cmd.OutOrStdout(), "nutrigate version %s\n", rootCmd.Version)
		},
	}
}
