// Command permgate inspects and exercises the app's startup permission gate
// without a device.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "permgate",
		Short: "Inspect and simulate the startup permission gate",
		Long: `permgate reads the permissions section of drift.yaml and runs the gate
state machine against a scripted host, printing every host and UI call.`,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		configCmd(),
		simulateCmd(),
	)
	return root
}
