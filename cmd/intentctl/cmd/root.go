package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "intentctl",
	Short: "intentctl - intent-execution core operator CLI",
	Long: `intentctl drives an intent-execution host: run a standalone server,
submit intents against it, and inspect the resulting worlds and proposals.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(worldsCmd)
	rootCmd.AddCommand(proposalsCmd)
}
