package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/rferag/internal/factory"
	"github.com/ChamsBouzaiene/rferag/internal/runstore"
)

var (
	historyListLimit   int
	historySearchLimit int
	historyStatus      string
	historySnapshots   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), func(app *factory.App) error {
			runs, err := app.Store.ListRuns(cmd.Context(), historyListLimit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run; an unambiguous id prefix is enough",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), func(app *factory.App) error {
			run, err := app.Store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printRun(out, run)
			if !historySnapshots {
				return nil
			}
			snaps, err := app.Store.Snapshots(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			printSnapshots(out, snaps)
			return nil
		})
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over past questions and answers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), func(app *factory.App) error {
			hits, err := app.Archive.Search(strings.Join(args, " "), runstore.Status(historyStatus), historySearchLimit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSCORE\tSTATUS\tSTARTED\tQUESTION")
			for _, h := range hits {
				fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t%s\n",
					shortID(h.RunID), h.Score, h.Status, ago(h.Started), oneLine(h.Question, 60))
			}
			return w.Flush()
		})
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyListLimit, "limit", "n", 20, "Number of runs (0: all)")
	historySearchCmd.Flags().IntVarP(&historySearchLimit, "limit", "n", 10, "Number of results")
	historySearchCmd.Flags().StringVar(&historyStatus, "status", "", "Only runs with this status (done, failed)")
	historyShowCmd.Flags().BoolVar(&historySnapshots, "snapshots", false, "Print the state after every step")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historySearchCmd)
}

func withHistory(ctx context.Context, fn func(*factory.App) error) error {
	app, err := factory.OpenHistory(ctx, cfg.ResolveDataDir(cfgMgr.Dir()), logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func printRuns(w io.Writer, runs []*runstore.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tROUTE\tSTARTED\tFILES\tQUESTION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(r.ID), r.Status, orDash(string(r.Route)), ago(r.StartedAt), r.NumExplorations, oneLine(r.Question, 60))
	}
	tw.Flush()
}

func printRun(w io.Writer, r *runstore.Run) {
	fmt.Fprintf(w, "Run:       %s\n", r.ID)
	fmt.Fprintf(w, "Question:  %s\n", r.Question)
	fmt.Fprintf(w, "Status:    %s\n", r.Status)
	if r.Route != "" {
		fmt.Fprintf(w, "Route:     %s\n", r.Route)
	}
	if r.DecisionKind != "" {
		fmt.Fprintf(w, "Decision:  %s\n", r.DecisionKind)
	}
	fmt.Fprintf(w, "Rounds:    %d\n", r.ExplorationCounter)
	fmt.Fprintf(w, "Files:     %d\n", r.NumExplorations)
	fmt.Fprintf(w, "Tokens:    %d\n", r.Tokens)
	fmt.Fprintf(w, "Started:   %s\n", r.StartedAt.Local().Format(time.DateTime))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Duration:  %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	if r.Error != "" {
		fmt.Fprintf(w, "\nError:\n%s\n", r.Error)
	}
	if r.Answer != "" {
		fmt.Fprintf(w, "\nAnswer:\n%s\n", renderMarkdown(r.Answer, false))
	}
}

func printSnapshots(w io.Writer, snaps []runstore.Snapshot) {
	for _, s := range snaps {
		st := s.State
		fmt.Fprintf(w, "\n--- #%d %s (round %d) ---\n", s.Seq, s.Step, s.Round)
		for _, req := range st.Pending {
			fmt.Fprintf(w, "pending:  %s  %q\n", req.Path, req.SubPrompt)
		}
		for _, n := range st.Acquired {
			fmt.Fprintf(w, "acquired: %s  %s\n", n.Path, oneLine(n.Note, 80))
		}
		fmt.Fprintf(w, "context:  %s\n", oneLine(st.DynamicContext, 100))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return units.HumanDuration(time.Since(t)) + " ago"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}
