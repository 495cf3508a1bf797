package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	flagship "github.com/TimurManjosov/flagship-go-sdk"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintFlags outputs a flag listing in the specified format
func PrintFlags(flags []flagship.Flag, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]flagship.Flag{"flags": flags})
	case FormatYAML:
		return printYAML(flags)
	case FormatTable:
		return printFlagTable(flags)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintVariantResult outputs one evaluation result
func PrintVariantResult(result flagship.VariantResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(result)
	case FormatYAML:
		return printYAML(result)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Flag", "Match", "Variant", "Reason", "Rule")
		table.Append(
			result.FlagKey,
			fmt.Sprintf("%t", result.Match),
			result.VariantKey,
			string(result.Reason),
			result.MatchedRuleID,
		)
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintBatchResults outputs batch evaluation results
func PrintBatchResults(results []flagship.BatchResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]flagship.BatchResult{"results": results})
	case FormatYAML:
		return printYAML(results)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Flag", "Outcome", "Reason")
		for _, r := range results {
			switch {
			case r.Boolean != nil:
				table.Append(r.FlagKey, fmt.Sprintf("%t", r.Boolean.Enabled), string(r.Boolean.Reason))
			case r.Variant != nil:
				table.Append(r.FlagKey, r.Variant.VariantKey, string(r.Variant.Reason))
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printFlagTable(flags []flagship.Flag) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Type", "Enabled", "Description")

	for _, flag := range flags {
		description := flag.Description
		if len(description) > 40 {
			description = description[:37] + "..."
		}
		table.Append(flag.Key, flag.Type, fmt.Sprintf("%t", flag.Enabled), description)
	}

	return table.Render()
}
