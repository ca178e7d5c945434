package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatDatasources renders the datasources map the way it is shown to the model.
func FormatDatasources(ds map[string][]string) string {
	if ds == nil {
		ds = map[string][]string{}
	}
	// json.Marshal sorts map keys, so the rendering is stable across calls.
	b, err := json.Marshal(ds)
	if err != nil {
		return fmt.Sprintf("%v", ds)
	}
	return string(b)
}

// FormatContext renders the datasource listing and the running project notes.
func FormatContext(st *State) string {
	var b strings.Builder
	b.WriteString("Available datasources:\n'")
	b.WriteString(FormatDatasources(st.Datasources))
	b.WriteString("'\n\n[[Start of Project notes]]\n")
	b.WriteString(st.DynamicContext)
	b.WriteString("\n[[End of Project notes]]")
	return b.String()
}

// ExplorationQueue flattens a decision's explore mapping into file requests, in
// response order. Paths are root + "/" + file with every "//" collapsed.
func ExplorationQueue(explore ExploreMap) []FileRequest {
	var queue []FileRequest
	for _, src := range explore {
		for _, f := range src.Files {
			queue = append(queue, FileRequest{
				Path:      joinSourcePath(src.Source, f.File),
				SubPrompt: f.Prompt,
			})
		}
	}
	return queue
}

func joinSourcePath(source, file string) string {
	p := source + "/" + file
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// IncomingContext renders acquired notes as the block handed to the merge step.
func IncomingContext(notes []FileNote) string {
	var b strings.Builder
	b.WriteString("This is the context acquired from the exploration:\n\n")
	for _, n := range notes {
		fmt.Fprintf(&b, "\n[[Start of notes on file: %s]]\n%s\n[[End of notes on file: %s]]\n", n.Path, n.Note, n.Path)
	}
	return b.String()
}

// FinalPrompt builds the inline prompt of the finalize step.
func FinalPrompt(st *State) string {
	return st.MainPrompt +
		"\n\n[[Start of what you know about the project]]\n" +
		FormatContext(st) +
		"\n[[End of what you know about the project]]"
}
