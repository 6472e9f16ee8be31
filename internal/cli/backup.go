package cli

import (
	"fmt"

	"github.com/flowledger/flowledger/internal/app"
	"github.com/flowledger/flowledger/internal/backup"
	"github.com/flowledger/flowledger/internal/config"
	"github.com/flowledger/flowledger/internal/db"
	"github.com/flowledger/flowledger/internal/logging"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage encrypted database backups",
	}
	cmd.AddCommand(newBackupCreateCommand(rootOpts))
	cmd.AddCommand(newBackupRestoreCommand(rootOpts))
	cmd.AddCommand(newBackupSnapshotCommand(rootOpts))
	return cmd
}

func backupManager(rootOpts *RootOptions, bootstrap func(cfg *config.Config) (*gorm.DB, error)) (*backup.Manager, *config.Config, error) {
	cfg, errLoad := config.Load(config.ResolveConfigPath(rootOpts.ConfigPath))
	if errLoad != nil {
		return nil, nil, errLoad
	}
	logging.Setup(cfg.Log.Level, cfg.Log.File)

	dbPath := db.SQLitePathFromDSN(cfg.Database.DSN)
	if dbPath == "" {
		return nil, nil, backup.ErrNotSQLite
	}
	conn, errBoot := bootstrap(cfg)
	if errBoot != nil {
		return nil, nil, errBoot
	}
	mgr, errMgr := backup.NewManager(conn, dbPath)
	if errMgr != nil {
		return nil, nil, errMgr
	}
	return mgr, cfg, nil
}

func newBackupCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		passphrase string
		label      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write an encrypted backup of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, errMgr := backupManager(rootOpts, func(cfg *config.Config) (*gorm.DB, error) {
				return app.Bootstrap(cmd.Context(), cfg)
			})
			if errMgr != nil {
				return errMgr
			}
			path, errCreate := mgr.Create(cmd.Context(), passphrase, label)
			if errCreate != nil {
				return errCreate
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "encryption passphrase (required)")
	cmd.Flags().StringVarP(&label, "label", "l", "manual", "backup label")
	_ = cmd.MarkFlagRequired("passphrase")
	return cmd
}

func newBackupRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore the database from an encrypted backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, errMgr := backupManager(rootOpts, func(cfg *config.Config) (*gorm.DB, error) {
				return app.Bootstrap(cmd.Context(), cfg)
			})
			if errMgr != nil {
				return errMgr
			}
			return mgr.Restore(cmd.Context(), args[0], passphrase)
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "encryption passphrase (required)")
	_ = cmd.MarkFlagRequired("passphrase")
	return cmd
}

func newBackupSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write a plain snapshot copy of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, errMgr := backupManager(rootOpts, func(cfg *config.Config) (*gorm.DB, error) {
				return app.Bootstrap(cmd.Context(), cfg)
			})
			if errMgr != nil {
				return errMgr
			}
			path, errSnap := mgr.Snapshot(cmd.Context(), reason)
			if errSnap != nil {
				return errSnap
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "manual", "snapshot reason")
	return cmd
}
