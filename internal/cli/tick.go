package cli

import (
	"github.com/flowledger/flowledger/internal/app"
	"github.com/flowledger/flowledger/internal/config"
	"github.com/flowledger/flowledger/internal/logging"
	"github.com/flowledger/flowledger/internal/scheduler"
	"github.com/spf13/cobra"
)

// NewTickCommand creates the tick command, which fires one scheduler
// pass and exits. Useful under an external cron.
func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduled evaluation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, errLoad := config.Load(config.ResolveConfigPath(rootOpts.ConfigPath))
			if errLoad != nil {
				return errLoad
			}
			logging.Setup(cfg.Log.Level, cfg.Log.File)

			conn, errBoot := app.Bootstrap(cmd.Context(), cfg)
			if errBoot != nil {
				return errBoot
			}
			runner := app.NewRunner(conn)
			scheduler.New(conn, runner, cfg.Scheduler.Spec).Tick(cmd.Context())
			return nil
		},
	}
}
