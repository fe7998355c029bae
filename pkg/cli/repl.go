package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/skinklang/skink/internal/object"
	"github.com/skinklang/skink/internal/token"
	"github.com/spf13/cobra"
)

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Long: `Read, evaluate and print Skink lines interactively.

Bindings persist across lines and the value of the last expression is
kept in "_". History lives under the project's .skink directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepl(cmd)
		},
	}
}

func runRepl(cmd *cobra.Command) error {
	cfg := getConfig()
	in, cleanup, err := newInterp(cmd.OutOrStdout(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	historyFile := filepath.Join(cfg.ProjectRoot, ".skink", "history")
	_ = os.MkdirAll(filepath.Dir(historyFile), 0o755)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt(),
		HistoryFile:     historyFile,
		AutoComplete:    newReplCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".exit",
	})
	if err != nil {
		return fmt.Errorf("starting repl: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	if cfg.Name != "" {
		fmt.Fprintf(out, "Skink v%s (project %s)\n", Version, cfg.Name)
	} else {
		fmt.Fprintf(out, "Skink v%s\n", Version)
	}
	fmt.Fprintln(out, "Type .help for help, .exit to exit")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if line == ".exit" || line == ".quit" {
				break
			}
			if line == ".help" {
				printReplHelp(out)
				continue
			}
			fmt.Fprintf(out, "unknown command %s\n", line)
			continue
		}

		v, err := in.EvalLine(line)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			continue
		}
		if v != nil && v != object.NilValue {
			fmt.Fprintln(out, v.Inspect())
		}
	}
	return nil
}

func replPrompt() string {
	if stdoutIsTerminal() {
		return "\x1b[32mskink>\x1b[0m "
	}
	return "skink> "
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func newReplCompleter() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".exit"),
		readline.PcItem(".quit"),
		readline.PcItem("lazy_import()"),
	}
	for _, kw := range token.Keywords() {
		items = append(items, readline.PcItem(kw))
	}
	return readline.NewPrefixCompleter(items...)
}

func printReplHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  .help   Show this help")
	fmt.Fprintln(w, "  .exit   Leave the session (.quit works too)")
	fmt.Fprintln(w, "Expressions print their value; \"_\" holds the last one.")
}
