package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/rferag/internal/factory"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Ask questions interactively",
	Long: `Starts an interactive session. Lines are questions, except:
  :add <dir>   register another data source
  :sources     list registered data sources
  :quit        leave`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.Context())
	},
}

func runREPL(ctx context.Context) error {
	p := newProgress(os.Stderr)
	defer p.Close()

	app, err := buildApp(ctx, p.Hook())
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Fprintf(os.Stderr, "rferag ready (model: %s, %d data source(s)). Type :quit to leave.\n",
		app.Model, len(app.Registry.Roots()))
	return replLoop(ctx, app, os.Stdin, os.Stdout, p)
}

func replLoop(ctx context.Context, app *factory.App, in io.Reader, out io.Writer, p *progress) error {
	s := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !s.Scan() {
			fmt.Fprintln(out)
			return s.Err()
		}
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if quit := replCommand(app, line, out); quit {
				return nil
			}
			continue
		}

		if len(app.Registry.Roots()) == 0 {
			fmt.Fprintln(out, "no data sources yet: use :add <dir>")
			continue
		}

		qctx, cancel := withTimeout(ctx)
		ans, err := app.Explorer.Answer(qctx, line)
		cancel()
		p.Sync()
		if err != nil {
			fmt.Fprintf(out, "error: %v\n\n", err)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		fmt.Fprintln(out, renderMarkdown(ans.Answer, false))
		fmt.Fprintln(out)
	}
}

// replCommand runs a :command and reports whether the session should end.
func replCommand(app *factory.App, line string, out io.Writer) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":quit", ":exit", ":q":
		return true
	case ":add":
		if arg == "" {
			fmt.Fprintln(out, "usage: :add <dir>")
			return false
		}
		root, err := app.AddDatasource(arg)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "added %s (%d files)\n", root, len(app.Registry.Snapshot()[root]))
	case ":sources":
		printSources(out, app.Registry.Snapshot(), false)
	default:
		fmt.Fprintf(out, "unknown command %s (try :add, :sources, :quit)\n", name)
	}
	return false
}
