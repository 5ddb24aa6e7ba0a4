package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is replaced at build time with -ldflags "-X main.version=..."
var version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "narrator %s\n", version)
		fmt.Fprintf(out, "  Go:       %s\n", runtime.Version())
		fmt.Fprintf(out, "  Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
