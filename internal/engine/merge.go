package engine

import (
	"context"
	"strings"

	"github.com/ChamsBouzaiene/rferag/internal/prompts"
)

// merge folds st.Acquired into the running summary and completes the round.
// The model's reply replaces DynamicContext as is, only trimmed.
func (x *Explorer) merge(ctx context.Context, st *State) error {
	if len(st.Acquired) == 0 {
		return nil
	}

	prompt, err := prompts.Render(x.registry, prompts.UpdateInternalContext, map[string]string{
		"main_prompt":       st.MainPrompt,
		"project_structure": FormatDatasources(st.Datasources),
		"current_context":   st.DynamicContext,
		"incoming_context":  IncomingContext(st.Acquired),
	})
	if err != nil {
		return WrapWithContext(err, st, StepMerge, "render_prompt", "")
	}

	resp, err := x.call(ctx, st, StepMerge, x.opts.Model, UserMessage(prompt), x.opts.chatOptions())
	if err != nil {
		return WrapWithContext(err, st, StepMerge, "llm_call", "")
	}

	st.DynamicContext = strings.TrimSpace(resp.Assistant.Content)
	st.Acquired = nil
	return nil
}
