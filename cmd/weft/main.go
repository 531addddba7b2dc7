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

const banner = `
  ╦ ╦┌─┐┌─┐┌┬┐
  ║║║├┤ ├┤  │
  ╚╩╝└─┘└   ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "weft",
		Short: "Reactive property and event core for Go",
		Long: `Weft is a thread-safe reactive property and event core.

It wires observable cells, a keyed property store, a priority-ordered
event bus, and a main-thread dispatch loop into one container:

  • Reactive cells with typed and boxed access
  • Lazily recomputed derived cells
  • Priority-ordered typed event bus with fault isolation
  • Keyed property store with deferred subscriptions
  • Main-thread marshalling with a bounded per-tick budget`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		demoCmd(),
		benchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the Weft ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
