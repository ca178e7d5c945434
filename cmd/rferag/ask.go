package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
)

var (
	askRaw         bool
	askJSON        bool
	askQuiet       bool
	askShowContext bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question from the configured data sources",
	Long: `Explores the data sources given with --datasource (plus those in the
configuration) and prints the answer. Progress goes to stderr.

Example:
  rferag ask -d ./reports "What was the revenue in Q3?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		if len(cfg.Datasources.Paths) == 0 {
			return fmt.Errorf("no data sources: pass --datasource or set datasources.paths")
		}

		ctx, cancel := withTimeout(cmd.Context())
		defer cancel()

		var p *progress
		var hooks []engine.Hook
		if !askQuiet && !askJSON {
			p = newProgress(os.Stderr)
			defer p.Close()
			hooks = append(hooks, p.Hook())
		}

		app, err := buildApp(ctx, hooks...)
		if err != nil {
			return err
		}
		defer app.Close()

		ans, err := app.Explorer.Answer(ctx, question)
		if p != nil {
			p.Sync()
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if askJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(ans)
		}
		if askShowContext {
			fmt.Fprintln(out, ans.Context)
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, renderMarkdown(ans.Answer, askRaw))
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Print the answer without markdown rendering")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the answer record as JSON")
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "Do not print progress")
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "Print the context the answer was written from")
}
