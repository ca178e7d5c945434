// Package readers implements the per-file reader agents and the extension table
// that picks one for a path.
package readers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/docker/go-units"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
	"github.com/ChamsBouzaiene/rferag/internal/prompts"
)

// DefaultMaxFileSize caps how much of a file is shown to the model.
const DefaultMaxFileSize = "256KB"

// Agent carries what every reader needs to ask a model about one file.
type Agent struct {
	LLM      engine.LLMClient
	Model    string
	Registry *prompts.PromptRegistry
	Options  engine.ChatOptions
}

func (a Agent) registry() *prompts.PromptRegistry {
	if a.Registry == nil {
		return prompts.DefaultRegistry()
	}
	return a.Registry
}

// ask renders template id and sends it, with optional images, in one user turn.
func (a Agent) ask(ctx context.Context, id string, vars map[string]string, images ...engine.ImagePart) (string, error) {
	prompt, err := prompts.Render(a.registry(), id, vars)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	msgs := []engine.ChatMessage{{Role: engine.RoleUser, Content: prompt, Images: images}}

	policy := engine.DefaultRetryConfig().LLMPolicy
	if a.Options.RetryConfig != nil {
		policy = a.Options.RetryConfig.LLMPolicy
	}
	resp, err := engine.RetryLLMCall(ctx, policy, a.LLM, a.Model, msgs, a.Options, nil)
	if err != nil {
		return "", err
	}
	return resp.Assistant.Content, nil
}

func baseVars(subPrompt, filePath string, st *engine.State) map[string]string {
	return map[string]string{
		"main_prompt":     st.MainPrompt,
		"specific_prompt": subPrompt,
		"file_path":       filePath,
	}
}

// ParseSize reads a human size such as "256KB" or "1MiB" (binary multiples).
func ParseSize(s string) (int64, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n, nil
}

// readCapped reads at most limit bytes of path. truncated reports whether the
// file was longer than limit; size is the full size on disk.
func readCapped(path string, limit int64) (data []byte, size int64, truncated bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, false, err
	}
	size = info.Size()
	if limit <= 0 || size <= limit {
		data, err = io.ReadAll(f)
		return data, size, false, err
	}

	data = make([]byte, limit)
	n, err := io.ReadFull(f, data)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, size, false, err
	}
	return data[:n], size, true, nil
}

func truncationNote(shown int, size int64) string {
	return fmt.Sprintf("\n[... truncated: showing the first %s of %s]",
		units.BytesSize(float64(shown)), units.BytesSize(float64(size)))
}
