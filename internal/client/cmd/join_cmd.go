package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join room",
	Short: "join a chat room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.Join(args[0])
		if err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("%s", resp.Error)
		}

		fmt.Printf("joined %s (%d users)\n", args[0], len(resp.RoomUsers))
		for _, u := range resp.RoomUsers {
			fmt.Println("  " + u)
		}
		return nil
	},
}
