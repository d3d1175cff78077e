// Package main provides the CLI entry point for the tool execution hub.
//
// Basic usage:
//
//	toolhub scan --config toolhub.yaml
//	toolhub list --detail full
//	toolhub verify --config toolhub.yaml
//
// The config file names the discovery roots, the policy sandbox, per-tool
// budgets, and the job store. Environment variables in the file are
// expanded before parsing.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "toolhub",
		Short: "Toolhub - tool execution hub",
		Long: `Toolhub discovers tools from directory roots, validates their schemas,
and executes them behind a policy, budget, and evidence pipeline.

Tool kinds: core, local-fn, rpc-tool, workflow, image-pipeline, skill`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildScanCmd(),
		buildListCmd(),
		buildVerifyCmd(),
	)
	return rootCmd
}
