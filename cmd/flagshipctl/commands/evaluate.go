package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	flagship "github.com/TimurManjosov/flagship-go-sdk"
	"github.com/TimurManjosov/flagship-go-sdk/internal/cli"
)

var (
	evalEntityID string
	evalAttrs    []string
	evalBoolean  bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <flag-key> [flag-key...]",
	Short: "Evaluate one or more flags for an entity",
	Long: `Evaluate flags exactly as the SDK would: the snapshot is fetched once
and evaluation runs locally, so the printed result is what an embedded
client would see.

Attribute values are parsed as bool or number when possible, otherwise
kept as strings.

Examples:
  flagshipctl evaluate new-ui --entity user-42 --attr country=US
  flagshipctl evaluate kill-switch --entity user-42 --boolean
  flagshipctl evaluate new-ui gradual --entity user-42 --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(evalEntityID) == "" {
			return fmt.Errorf("--entity is required")
		}
		attrs, err := parseAttrs(evalAttrs)
		if err != nil {
			return err
		}

		client, err := newClient(15 * time.Second)
		if err != nil {
			return err
		}
		defer client.Close()

		if len(args) == 1 && !evalBoolean {
			result, err := client.EvaluateVariant(args[0], evalEntityID, attrs)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			if quiet {
				return nil
			}
			return cli.PrintVariantResult(result, cli.OutputFormat(format))
		}

		if len(args) == 1 && evalBoolean {
			result, err := client.EvaluateBoolean(args[0], evalEntityID, attrs)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			if quiet {
				return nil
			}
			fmt.Printf("%s: %t (%s)\n", result.FlagKey, result.Enabled, result.Reason)
			return nil
		}

		requests := make([]flagship.BatchRequest, 0, len(args))
		for _, key := range args {
			requests = append(requests, flagship.BatchRequest{
				FlagKey:  key,
				EntityID: evalEntityID,
				Context:  attrs,
			})
		}
		results, err := client.EvaluateBatch(requests)
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintBatchResults(results, cli.OutputFormat(format))
	},
}

// parseAttrs turns key=value pairs into a context map, coercing values
// that look like bools or numbers.
func parseAttrs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q, expected key=value", pair)
		}
		switch {
		case value == "true" || value == "false":
			attrs[key] = value == "true"
		default:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				attrs[key] = n
			} else {
				attrs[key] = value
			}
		}
	}
	return attrs, nil
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalEntityID, "entity", "", "Entity id to evaluate for (required)")
	evaluateCmd.Flags().StringArrayVar(&evalAttrs, "attr", nil, "Context attribute as key=value (repeatable)")
	evaluateCmd.Flags().BoolVar(&evalBoolean, "boolean", false, "Evaluate as a boolean flag")
}
