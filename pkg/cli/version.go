package cli

import (
	"fmt"

	"github.com/skinklang/skink/internal/bytecode"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "skink v%s (commit %s)\n", version, GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "bytecode formats: %d, %d (default %d)\n",
				bytecode.FormatLegacy, bytecode.FormatCurrent, bytecode.FormatCurrent)
		},
	}
}
