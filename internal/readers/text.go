package readers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
	"github.com/ChamsBouzaiene/rferag/internal/prompts"
)

// TextReader shows the file content to the model, capped at MaxBytes.
type TextReader struct {
	Agent
	MaxBytes int64 // <= 0: no cap
}

// Read implements engine.Reader.
func (r *TextReader) Read(ctx context.Context, subPrompt, filePath string, st *engine.State) (string, error) {
	data, size, truncated, err := readCapped(filePath, r.MaxBytes)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	content := strings.ToValidUTF8(string(data), "�")
	if truncated {
		content += truncationNote(len(data), size)
	}

	vars := baseVars(subPrompt, filePath, st)
	vars["file_content"] = content
	return r.ask(ctx, prompts.ContextFromTextFile, vars)
}
