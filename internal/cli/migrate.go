package cli

import (
	"github.com/flowledger/flowledger/internal/app"
	"github.com/flowledger/flowledger/internal/config"
	"github.com/flowledger/flowledger/internal/logging"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, errLoad := config.Load(config.ResolveConfigPath(rootOpts.ConfigPath))
			if errLoad != nil {
				return errLoad
			}
			logging.Setup(cfg.Log.Level, cfg.Log.File)

			if _, errBoot := app.Bootstrap(cmd.Context(), cfg); errBoot != nil {
				return errBoot
			}
			log.Info("Database migrated")
			return nil
		},
	}
}
