package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "boltd %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", GitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "  go:      %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
