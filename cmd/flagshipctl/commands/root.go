package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	flagship "github.com/TimurManjosov/flagship-go-sdk"
	"github.com/TimurManjosov/flagship-go-sdk/internal/cli"
)

var (
	// Global flags
	profile     string
	url         string
	clientToken string
	environment string
	namespace   string
	format      string
	quiet       bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagshipctl",
	Short: "CLI for evaluating and inspecting feature flags",
	Long: `Flagshipctl talks to a flag service (or relay) and evaluates flags
the same way the SDK does, which makes it handy for debugging targeting
rules and rollout splits.

Examples:
  flagshipctl list --url http://localhost:8080
  flagshipctl evaluate new-ui --entity user-42 --attr country=US
  flagshipctl watch --url http://localhost:8080`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Named profile from the config file")
	rootCmd.PersistentFlags().StringVar(&url, "url", "", "Base URL of the flag service")
	rootCmd.PersistentFlags().StringVar(&clientToken, "token", "", "Client token for authentication")
	rootCmd.PersistentFlags().StringVar(&environment, "environment", "", "Flag environment")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "", "Flag namespace (default \"default\")")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}

// newClient builds an SDK client from the resolved profile and performs
// the initial sync within timeout.
func newClient(timeout time.Duration) (*flagship.Client, error) {
	p, err := cli.GetProfile(profile, url, clientToken)
	if err != nil {
		return nil, err
	}

	env := environment
	if env == "" {
		env = p.Environment
	}
	ns := namespace
	if ns == "" {
		ns = p.Namespace
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return flagship.New(ctx, flagship.Options{
		URL:         p.URL,
		Environment: env,
		Namespace:   ns,
		ClientToken: p.ClientToken,
	})
}
