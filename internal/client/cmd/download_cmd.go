package cmd

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/soulsift/soulsift/internal/client/client"
	"github.com/soulsift/soulsift/internal/transfer"
)

var (
	downloadSize  uint64
	downloadWatch bool
)

var downloadCmd = &cobra.Command{
	Use:   "download username remote-path",
	Short: "download a file from a peer",
	Long:  `queues a download with the given peer; the daemon performs the transfer in the background`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		peer, path := args[0], args[1]

		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.Download(peer, path, downloadSize)
		if err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("%s", resp.Error)
		}

		switch resp.Status {
		case "accepted":
			fmt.Printf("queued %q from %s\n", path, peer)
		case "rejected":
			return fmt.Errorf("rejected by %s: %s", peer, resp.Reason)
		default:
			return fmt.Errorf("download failed: %s", resp.Detail)
		}

		if !downloadWatch {
			return nil
		}
		return watchDownload(c, peer, path)
	},
}

// watchDownload polls the daemon and renders a progress bar until the
// transfer reaches a terminal state.
func watchDownload(c *client.Client, peer, path string) error {
	fileID := transfer.FileID(path)
	var bar *progressbar.ProgressBar

	for {
		resp, err := c.Status()
		if err != nil {
			return err
		}
		v, ok := resp.Transfers[peer][fileID]
		if !ok {
			return fmt.Errorf("transfer disappeared from the daemon")
		}

		if bar == nil && v.Size > 0 {
			bar = progressbar.DefaultBytes(int64(v.Size), "downloading")
		}
		if bar != nil {
			bar.Set64(int64(v.Transferred))
		}

		if v.State.Terminal() {
			fmt.Printf("\n%s\n", v.State)
			if v.State != transfer.StateCompleted {
				return fmt.Errorf("download ended %s", v.State)
			}
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func init() {
	downloadCmd.Flags().Uint64Var(&downloadSize, "size", 0, "expected file size in bytes, if known")
	downloadCmd.Flags().BoolVarP(&downloadWatch, "watch", "w", false, "wait and show transfer progress")
}
