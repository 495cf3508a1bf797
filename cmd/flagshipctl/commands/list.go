package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	flagship "github.com/TimurManjosov/flagship-go-sdk"
	"github.com/TimurManjosov/flagship-go-sdk/internal/cli"
)

var listEnabledOnly bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List flags in a namespace",
	Long: `List the flags of the configured namespace.

Examples:
  flagshipctl list
  flagshipctl list --namespace checkout --format json
  flagshipctl list --enabled-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(15 * time.Second)
		if err != nil {
			return err
		}
		defer client.Close()

		flags, err := client.ListFlags()
		if err != nil {
			return fmt.Errorf("failed to list flags: %w", err)
		}

		if listEnabledOnly {
			var enabled []flagship.Flag
			for _, f := range flags {
				if f.Enabled {
					enabled = append(enabled, f)
				}
			}
			flags = enabled
		}

		if quiet {
			return nil
		}
		if len(flags) == 0 {
			fmt.Println("No flags found")
			return nil
		}
		return cli.PrintFlags(flags, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listEnabledOnly, "enabled-only", false, "Show only enabled flags")
}
