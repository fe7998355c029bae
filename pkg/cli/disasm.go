package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDisasmCommand creates the disasm command.
func NewDisasmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file.sk>",
		Short: "Disassemble a script",
		Long:  `Compile a script and print the bytecode listing without running it.`,
		Example: `  # Show the compiled bytecode
  skink disasm app.sk

  # Compare against the legacy call convention
  skink disasm app.sk --format 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, cleanup, err := newInterp(cmd.OutOrStdout(), getConfig())
			if err != nil {
				return err
			}
			defer cleanup()

			listing, err := in.Disassemble(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), listing)
			return nil
		},
	}
}
