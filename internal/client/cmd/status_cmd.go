package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "list tracked transfers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.Status()
		if err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("%s", resp.Error)
		}

		if len(resp.Transfers) == 0 {
			fmt.Println("no transfers")
			return nil
		}
		for peer, byFile := range resp.Transfers {
			for _, v := range byFile {
				line := fmt.Sprintf("%-8s %-12s %s %s", v.Direction, v.State, peer, v.Path)
				if v.Size > 0 {
					line += fmt.Sprintf(" (%d/%d bytes)", v.Transferred, v.Size)
				} else if v.Transferred > 0 {
					line += fmt.Sprintf(" (%d bytes)", v.Transferred)
				}
				if v.HasPlace {
					line += fmt.Sprintf(" [place %d]", v.PlaceInQueue)
				}
				fmt.Println(line)
			}
		}
		return nil
	},
}
