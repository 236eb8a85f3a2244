// Caseflowd runs the legal case-intake pipeline daemon.
//
// The daemon drives multi-stage case research and drafting sessions,
// gating every stage handoff on validated evidence. It exposes an HTTP
// API, an MCP stdio server for agent integration, and a one-shot CLI
// mode for offline runs.
//
// Usage:
//
//	# Start the HTTP server
//	caseflowd serve
//
//	# Serve MCP tools over stdio
//	caseflowd mcp
//
//	# Run one case offline and print the report
//	caseflowd run --facts "..." --jurisdiction delhi --case-type consumer
//
// Configuration is read from ~/.config/caseflowd/config.yaml and
// overridden by environment variables (SERVER_PORT, VALIDATION_MIN_COVERAGE, ...).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config override; empty means the default location.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "caseflowd",
	Short:   "Evidence-gated legal case-intake pipeline",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/caseflowd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("caseflowd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}
