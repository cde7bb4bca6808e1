package cli

import (
	"github.com/spf13/cobra"
)

var version = "v0.1.0"

// NewRootCmd creates the root limits command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "limits",
		Short: "Windowed quota scheduling",
		Long: `limits computes how long a call has to wait so that every configured
quota ("no more than N calls per period") holds, and keeps the call history
needed to answer that.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newSimulateCmd(),
	)

	return root
}
