// commands.go contains the cobra command definitions and their flag
// configurations. Each builder wires a command to its handler.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultConfigName = "toolhub.yaml"

// buildScanCmd creates the "scan" command: discover tools from every
// configured root and report what was found.
func buildScanCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover tools from the configured roots",
		Example: `  # Scan the roots named in toolhub.yaml
  toolhub scan

  # Scan with a custom config
  toolhub scan --config /etc/toolhub/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName,
		"Path to YAML configuration file")
	return cmd
}

// buildListCmd creates the "list" command that prints the registered
// tool catalog at the selected detail level.
func buildListCmd() *cobra.Command {
	var (
		configPath string
		detail     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Long: `List every registered tool, built-ins included.

Detail levels:
  short   one tool name per line
  normal  name, kind, and description as tab-separated rows
  full    one JSON object per tool`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch detail {
			case "short", "normal", "full":
			default:
				return fmt.Errorf("invalid --detail %q: want short, normal, or full", detail)
			}
			return runList(cmd, configPath, detail)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName,
		"Path to YAML configuration file")
	cmd.Flags().StringVar(&detail, "detail", "normal",
		"Detail level: short, normal, full")
	return cmd
}

// buildVerifyCmd creates the "verify" command: validate the config,
// scan all roots, and check every discovered spec and schema.
func buildVerifyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Validate the configuration and every discovered tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName,
		"Path to YAML configuration file")
	return cmd
}
