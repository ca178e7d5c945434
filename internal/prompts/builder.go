package prompts

import (
	"fmt"
	"strings"
)

// PromptBuilder helps compose prompts from fragments and variables.
type PromptBuilder struct {
	basePrompt *Prompt
	fragments  []string
	variables  map[string]string
}

// NewPromptBuilder creates a new prompt builder based on a registered prompt.
func NewPromptBuilder(registry *PromptRegistry, id string, version PromptVersion) (*PromptBuilder, error) {
	basePrompt, err := registry.Get(id, version)
	if err != nil {
		return nil, fmt.Errorf("failed to get base prompt: %w", err)
	}
	return newBuilder(basePrompt), nil
}

// NewLatestPromptBuilder is NewPromptBuilder on the latest version of id.
func NewLatestPromptBuilder(registry *PromptRegistry, id string) (*PromptBuilder, error) {
	basePrompt, err := registry.GetLatest(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get base prompt: %w", err)
	}
	return newBuilder(basePrompt), nil
}

func newBuilder(p *Prompt) *PromptBuilder {
	return &PromptBuilder{
		basePrompt: p,
		fragments:  []string{p.Content},
		variables:  make(map[string]string),
	}
}

// AddFragment appends a fragment to the prompt.
func (b *PromptBuilder) AddFragment(text string) *PromptBuilder {
	b.fragments = append(b.fragments, text)
	return b
}

// SetVariable sets a variable for template substitution.
func (b *PromptBuilder) SetVariable(key, value string) *PromptBuilder {
	b.variables[key] = value
	return b
}

// SetVariables sets several variables at once.
func (b *PromptBuilder) SetVariables(vars map[string]string) *PromptBuilder {
	for k, v := range vars {
		b.variables[k] = v
	}
	return b
}

// Build constructs the final prompt string. Substitution is a single pass, so
// values containing "{{...}}" (file contents, model notes) are left untouched.
// Every variable the prompt declares must be set.
func (b *PromptBuilder) Build() (string, error) {
	var missing []string
	for _, v := range b.basePrompt.Variables {
		if _, ok := b.variables[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s: missing variables: %s", b.basePrompt.ID, strings.Join(missing, ", "))
	}

	result := strings.Join(b.fragments, "\n\n")

	pairs := make([]string, 0, 2*len(b.variables))
	for key, value := range b.variables {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(result), nil
}

// Render builds the latest version of template id with vars.
func Render(registry *PromptRegistry, id string, vars map[string]string) (string, error) {
	b, err := NewLatestPromptBuilder(registry, id)
	if err != nil {
		return "", err
	}
	return b.SetVariables(vars).Build()
}
