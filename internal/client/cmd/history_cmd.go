package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "list completed downloads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.History()
		if err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("%s", resp.Error)
		}

		if len(resp.History) == 0 {
			fmt.Println("no completed downloads")
			return nil
		}
		for _, e := range resp.History {
			when := time.Unix(e.CompletedAt, 0).Format(time.DateTime)
			fmt.Printf("%s  %s  %s (%d bytes)\n", when, e.Peer, e.Path, e.Size)
		}
		return nil
	},
}
