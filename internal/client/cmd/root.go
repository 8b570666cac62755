package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soulsift/soulsift/internal/client/client"
	"github.com/soulsift/soulsift/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:  `soulsift`,
	Long: `soulsift is a peer to peer file sharing client`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "soulsift.toml", "path to the config file")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(historyCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(configPath)
}

// newClient connects to the daemon socket named by the config.
func newClient() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.IPC.SocketPath)
}
