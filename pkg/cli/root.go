package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "skink",
		Short: "Skink - a small scripting language",
		Long: `Skink is a small dynamically typed scripting language with a bytecode VM.

Scripts import modules from a search path, and imports inside a
"with lazy_import()" block degrade to placeholders instead of failing,
so optional dependencies resolve on first use.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			cfg.Logger().Debug("configuration loaded",
				"config_file", GetConfigFileUsed(),
				"project_root", cfg.ProjectRoot)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./skink.yaml)")
	rootCmd.PersistentFlags().StringSlice("path", nil, "Module search path roots (may repeat)")
	rootCmd.PersistentFlags().Bool("cache", false, "Cache compiled chunks between runs")
	rootCmd.PersistentFlags().String("cache-path", "", "Chunk database path (default: <project>/.skink/chunks.db)")
	rootCmd.PersistentFlags().Int("format", 0, "Bytecode format to compile (1 legacy, 2 current)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"1", "2"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewReplCommand())
	rootCmd.AddCommand(NewDisasmCommand())
	rootCmd.AddCommand(NewCacheCommand())
	rootCmd.AddCommand(NewVersionCommand(Version))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
