// Package main is checkinctl, the operator CLI for the check-in service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safenotsorry/checkin/internal/app"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "checkinctl",
		Short:   "Operate the daily check-in service",
		Version: app.Version,
		Long: `checkinctl manages the check-in database schema, previews which users
are due for a check-in, rebuilds reminder and escalation timers, and sends
test messages through the configured transport.`,
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(dueCmd())
	root.AddCommand(recoverCmd())
	root.AddCommand(sendTestCmd())

	return root
}
