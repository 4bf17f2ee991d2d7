// Command portalctl is the operator tool for the Weighright portal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "portalctl",
	Short:         "Operator tool for the Weighright portal",
	Long:          `Runs the portal's eligibility, pricing and export logic from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newBMICmd(), newQuoteCmd(), newProjectCmd(), newHashPINCmd(), newGenKeyCmd(), newExportCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
