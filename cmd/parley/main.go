// Command parley runs the Parley sync client from a terminal: it connects,
// subscribes to rooms, and logs timeline traffic. Useful for soak-testing a
// deployment and as a wiring reference for embedding the client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley real-time sync client",
	Long: `parley connects to a Parley chat deployment over its multiplexed
WebSocket protocol, subscribes to rooms, and mirrors their timelines locally.`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
