package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/rferag/internal/datasource"
	"github.com/ChamsBouzaiene/rferag/internal/readers"
)

var sourcesFiles bool

var sourcesCmd = &cobra.Command{
	Use:   "sources [dir...]",
	Short: "Show what the explorer would see in the data sources",
	Long: `Enumerates the given directories (or the configured data sources) the
way a run does and prints the files per root, marking those no reader supports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs := args
		if len(dirs) == 0 {
			dirs = cfg.Datasources.Paths
		}
		if len(dirs) == 0 {
			return fmt.Errorf("no data sources: pass directories or --datasource")
		}

		reg := datasource.NewRegistry(datasource.ListOptions{
			RespectGitignore: cfg.Datasources.RespectGitignore,
			Ignore:           cfg.Datasources.Ignore,
		}, logger)
		for _, d := range dirs {
			if _, err := reg.Add(d); err != nil {
				return err
			}
		}
		printSources(cmd.OutOrStdout(), reg.Snapshot(), sourcesFiles)
		return nil
	},
}

func init() {
	sourcesCmd.Flags().BoolVarP(&sourcesFiles, "files", "l", false, "List every file")
}

func printSources(w io.Writer, snapshot map[string][]string, files bool) {
	roots := make([]string, 0, len(snapshot))
	for r := range snapshot {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	if len(roots) == 0 {
		fmt.Fprintln(w, "no data sources")
		return
	}

	for _, root := range roots {
		list := snapshot[root]
		supported := 0
		for _, f := range list {
			if readers.CategoryOf(f) != "" {
				supported++
			}
		}
		fmt.Fprintf(w, "%s  %d files, %d readable\n", root, len(list), supported)
		if !files {
			continue
		}
		for _, f := range list {
			cat := readers.CategoryOf(f)
			if cat == "" {
				cat = "-"
			}
			fmt.Fprintf(w, "  %-9s %s\n", cat, f)
		}
	}
}
