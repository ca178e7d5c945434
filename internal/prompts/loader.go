package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TemplateExt is the file extension of template overrides.
const TemplateExt = ".tmpl"

// LoadDir registers every <id>.tmpl file in dir as version PromptLocal of id.
// Overrides of built-in templates inherit their declared variables. Returns the
// ids that were loaded.
func LoadDir(registry *PromptRegistry, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read prompts dir: %w", err)
	}

	var loaded []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != TemplateExt {
			continue
		}
		id := strings.TrimSuffix(e.Name(), TemplateExt)
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, fmt.Errorf("read template %s: %w", e.Name(), err)
		}

		p := &Prompt{
			ID:          id,
			Version:     PromptLocal,
			Content:     string(content),
			Description: "loaded from " + dir,
		}
		if builtin, err := registry.Get(id, PromptV1); err == nil {
			p.Variables = builtin.Variables
		}
		registry.Register(p)
		loaded = append(loaded, id)
	}
	return loaded, nil
}
