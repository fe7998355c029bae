package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/skinklang/skink"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Watch bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <file.sk>",
		Short: "Run a script",
		Long: `Compile and execute a Skink script.

Imports resolve against the script's directory first, then the configured
search path. With --watch the script reruns whenever a source file in its
directory changes.`,
		Example: `  # Run a script
  skink run app.sk

  # Rerun on every source change
  skink run app.sk --watch

  # Keep compiled chunks between runs
  skink run app.sk --cache`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				return runWatch(cmd, args[0])
			}
			return runOnce(cmd, args[0])
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Rerun the script when source files change")

	return cmd
}

func runOnce(cmd *cobra.Command, path string) error {
	in, cleanup, err := newInterp(cmd.OutOrStdout(), getConfig())
	if err != nil {
		return err
	}
	defer cleanup()
	return in.RunFile(path)
}

// runWatch reruns the script on every change to a source file in its
// directory. Each run gets a fresh interpreter so stale module state
// never leaks between runs.
func runWatch(cmd *cobra.Command, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rerun := func() {
		if err := runOnce(cmd, abs); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}

	rerun()
	fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", dir)

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != skink.SourceExt {
				continue
			}

			// Debounce rapid saves
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			changed := filepath.Base(event.Name)
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				fmt.Fprintf(cmd.ErrOrStderr(), "reloading: %s changed\n", changed)
				rerun()
			})

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", werr)
		}
	}
}
