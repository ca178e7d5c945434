package readers

import (
	"strings"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
)

// Category groups extensions handled by the same reader agent.
type Category string

const (
	CategoryText     Category = "text"
	CategoryData     Category = "data"
	CategoryImage    Category = "image"
	CategoryNotebook Category = "notebook"
)

// Extensions is the static category table. Matching is case-sensitive.
var Extensions = map[Category][]string{
	CategoryText:     {"txt", "md", "py", "json", "html", "css", "js", "ts", "sql", "xml", "yml", "yaml", "log"},
	CategoryData:     {"csv", "parquet", "xlsx"},
	CategoryImage:    {"png", "jpg", "jpeg"},
	CategoryNotebook: {"ipynb"},
}

// Extension returns the text after the last "." of p, or p itself when it has
// no dot.
func Extension(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// CategoryOf returns the category of p's extension, or "" when unsupported.
func CategoryOf(p string) Category {
	ext := Extension(p)
	for c, exts := range Extensions {
		for _, e := range exts {
			if e == ext {
				return c
			}
		}
	}
	return ""
}

// Table resolves a path to the reader agent of its category.
type Table struct {
	agents map[Category]engine.Reader
}

// NewTable builds a table from one reader per category. Categories without a
// reader resolve to nil, i.e. unsupported.
func NewTable(agents map[Category]engine.Reader) *Table {
	t := &Table{agents: make(map[Category]engine.Reader, len(agents))}
	for c, r := range agents {
		if r != nil {
			t.agents[c] = r
		}
	}
	return t
}

// NewDefaultTable wires the four built-in agents. Data previews use
// structuredModel, the others agent.Model. previewRows <= 0 uses
// DefaultPreviewRows.
func NewDefaultTable(agent Agent, structuredModel string, maxFileSize int64, previewRows int) *Table {
	dataAgent := agent
	if structuredModel != "" {
		dataAgent.Model = structuredModel
	}
	return NewTable(map[Category]engine.Reader{
		CategoryText:     &TextReader{Agent: agent, MaxBytes: maxFileSize},
		CategoryData:     &DataReader{Agent: dataAgent, PreviewRows: previewRows},
		CategoryImage:    &ImageReader{Agent: agent, MaxBytes: maxFileSize * 16},
		CategoryNotebook: &NotebookReader{Agent: agent, MaxBytes: maxFileSize},
	})
}

// Resolve implements engine.ReaderResolver.
func (t *Table) Resolve(p string) engine.Reader {
	c := CategoryOf(p)
	if c == "" {
		return nil
	}
	return t.agents[c]
}

var _ engine.ReaderResolver = (*Table)(nil)
