package readers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
	"github.com/ChamsBouzaiene/rferag/internal/prompts"
)

// NotebookReader flattens a Jupyter notebook's cells and text outputs.
type NotebookReader struct {
	Agent
	MaxBytes int64 // cap on the rendered notebook; <= 0: no cap
}

// multiline is a notebook string field, stored either as one string or as a
// list of lines.
type multiline string

func (m *multiline) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = multiline(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*m = multiline(strings.Join(lines, ""))
	return nil
}

type notebook struct {
	Cells []struct {
		CellType string    `json:"cell_type"`
		Source   multiline `json:"source"`
		Outputs  []struct {
			OutputType string               `json:"output_type"`
			Text       multiline            `json:"text"`
			Data       map[string]multiline `json:"data"`
			EName      string               `json:"ename"`
			EValue     string               `json:"evalue"`
		} `json:"outputs"`
	} `json:"cells"`
}

// RenderNotebook turns notebook JSON into plain text: each cell headed by its
// type and index, followed by its stream, result and error outputs.
func RenderNotebook(data []byte) (string, error) {
	var nb notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return "", fmt.Errorf("parse notebook: %w", err)
	}

	var b strings.Builder
	for i, c := range nb.Cells {
		fmt.Fprintf(&b, "[%s cell %d]\n%s\n", c.CellType, i+1, strings.TrimRight(string(c.Source), "\n"))
		for _, o := range c.Outputs {
			var text string
			switch o.OutputType {
			case "stream":
				text = string(o.Text)
			case "execute_result", "display_data":
				text = string(o.Data["text/plain"])
			case "error":
				text = o.EName + ": " + o.EValue
			}
			if text = strings.TrimRight(text, "\n"); text != "" {
				fmt.Fprintf(&b, "[output]\n%s\n", text)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Read implements engine.Reader.
func (r *NotebookReader) Read(ctx context.Context, subPrompt, filePath string, st *engine.State) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read notebook: %w", err)
	}

	content, err := RenderNotebook(data)
	if err != nil {
		return "", err
	}
	if r.MaxBytes > 0 && int64(len(content)) > r.MaxBytes {
		content = strings.ToValidUTF8(content[:r.MaxBytes], "") + truncationNote(int(r.MaxBytes), int64(len(content)))
	}

	vars := baseVars(subPrompt, filePath, st)
	vars["notebook_content"] = content
	return r.ask(ctx, prompts.ContextFromNotebookFile, vars)
}
