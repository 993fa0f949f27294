package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scopeshare",
		Short: "Scoped shared values for trees of state machines",
		Long: `scopeshare lets a tree of independently-testable state machines share
typed values: a parent publishes a value under a typed key, descendants
read it, observe changes, or push values back up.

This CLI hosts development tooling around the library:

  • demo     Run a small owner/reader tree and watch changes propagate
  • version  Print build information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		demoCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
