// Command pedidosbot runs the order-management Telegram bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	coreconfig "pedidosbot/core/config"
	"pedidosbot/core/buildinfo"
	"pedidosbot/core/database"
	"pedidosbot/core/logger"
	"pedidosbot/internal/app"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "pedidosbot",
		Short:         "Conversational order-management bot",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := coreconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := logger.InitLogger(cfg); err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer func() { _ = logger.Shutdown() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			return a.Run(ctx)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := coreconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := logger.InitLogger(cfg); err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer func() { _ = logger.Shutdown() }()

			return database.RunMigrations(cfg.Database)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pedidosbot:", err)
		os.Exit(1)
	}
}
