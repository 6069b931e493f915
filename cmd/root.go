// Package cmd provides the boltd CLI commands.
//
// Commands:
//   - serve: HTTP API server (chat streaming, deploys, analytics)
//   - version: build information
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "boltd",
	Short: "boltd - AI web-app builder backend",
	Long: `boltd is the backend for an AI-assisted web development chat: it
streams model responses, parses artifact markup into executable actions,
runs them against a local workspace, and deploys the result to Fly.io.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
