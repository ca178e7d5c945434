package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
)

// renderMarkdown renders md for the terminal. Plain text is returned when
// stdout is not a terminal or rendering fails.
func renderMarkdown(md string, raw bool) string {
	if raw || !isTerminal(os.Stdout) {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
