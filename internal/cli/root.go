// Package cli implements the chronik command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chronik",
	Short: "Chronik, a habit and deadline tracker with XP, streaks and achievements",
	Long: `Chronik tracks habits, deadlines and subscriptions and rewards
consistency with XP, levels, streaks and achievements.

Run 'chronik serve' to start the API and the reminder scheduler.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
