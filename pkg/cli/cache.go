package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/skinklang/skink/internal/cache"
	"github.com/spf13/cobra"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the chunk cache",
		Long: `List or clear the compiled chunk database.

Chunks are keyed by source path, bytecode format and file mtime; a stale
entry is recompiled on the next run, so clearing is never required for
correctness.`,
	}
	cmd.AddCommand(newCacheListCommand())
	cmd.AddCommand(newCacheClearCommand())
	return cmd
}

func newCacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached chunks",
		Example: `  # List the project cache
  skink cache list

  # List a specific database
  skink cache list --cache-path build/chunks.db`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := cache.Open(getConfig().ResolvedCachePath())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Entries()
			if err != nil {
				return err
			}
			renderEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached chunk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := cache.Open(getConfig().ResolvedCachePath())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.Clear()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d chunks\n", n)
			return nil
		},
	}
}

func renderEntries(w io.Writer, entries []cache.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(0 chunks)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Format", "Size", "Written", "Session"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.File, e.Format, e.Size, e.Written.Format(time.RFC3339), e.Session})
	}
	t.Render()
	fmt.Fprintf(w, "(%d chunks)\n", len(entries))
}
