package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch for snapshot updates",
	Long: `Stay connected and print a line whenever a new flag snapshot is
published upstream. Useful for checking that rollout edits propagate.

Examples:
  flagshipctl watch
  flagshipctl watch --url http://localhost:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(15 * time.Second)
		if err != nil {
			return err
		}
		defer client.Close()

		updates, unsubscribe := client.Subscribe()
		defer unsubscribe()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		fmt.Println("Watching for snapshot updates (Ctrl-C to stop)...")
		for {
			select {
			case <-stop:
				return nil
			case u, ok := <-updates:
				if !ok {
					return nil
				}
				fmt.Printf("%s  etag=%s version=%s flags=%d\n",
					u.FetchedAt.Format(time.RFC3339), u.ETag, u.Version, u.FlagCount)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
