// Package cli defines the flowledger command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string // Path to the config file.
}

// NewRootCommand creates the root command for the flowledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flowledger",
		Short: "FlowLedger rule evaluation and guardrail engine",
		Long: `FlowLedger evaluates personal financial automation rules against
transaction, schedule and manual events, with guardrails, an
idempotent run ledger and full rule version history.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file path")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewTickCommand(opts))

	return cmd
}
