package main

import (
	"context"
	"fmt"

	"csi_locks/internal/platform/config"
	"csi_locks/internal/platform/database"
	"csi_locks/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg           *config.Config
	migrateOnBoot bool

	rootCmd = &cobra.Command{
		Use:   "csi-server",
		Short: "Timed lock-puzzle session backend",
		Long: `csi-server hands out puzzle bundles, runs the server-side countdown for each
team session, grades answers and flags sessions that keep losing focus.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			logger.Init(cfg.LogLevel, cfg.LogFile)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the session event worker",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE:  runMigrate,
	}
)

func init() {
	// serve is also the root's default action, so both accept --migrate.
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().BoolVar(&migrateOnBoot, "migrate", false, "apply the database schema before serving")
	}
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := database.Connect(ctx, cfg.DBConnStr)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Log.Info("schema applied", zap.Strings("files", applied))
	return nil
}
