package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soulsift/soulsift/internal/daemon"
	"github.com/soulsift/soulsift/internal/logger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "run the soulsift daemon",
	Long:  `runs the soulsift daemon in the foreground, the daemon uses a unix socket to communicate with the CLI`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		log := logger.NewWithLevel(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		d, err := daemon.New(cfg, log)
		if err != nil {
			return err
		}
		return d.Start(ctx)
	},
}
