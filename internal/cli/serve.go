package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/flowledger/flowledger/internal/app"
	"github.com/flowledger/flowledger/internal/config"
	"github.com/flowledger/flowledger/internal/logging"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, errLoad := config.Load(config.ResolveConfigPath(rootOpts.ConfigPath))
			if errLoad != nil {
				return errLoad
			}
			logging.Setup(cfg.Log.Level, cfg.Log.File)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.RunServer(ctx, cfg)
		},
	}
}
