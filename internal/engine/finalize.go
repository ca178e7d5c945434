package engine

import "context"

// finalize asks the model for the answer given everything gathered so far and
// stores the raw reply.
func (x *Explorer) finalize(ctx context.Context, st *State) error {
	resp, err := x.call(ctx, st, StepFinalize, x.opts.Model, UserMessage(FinalPrompt(st)), x.opts.chatOptions())
	if err != nil {
		return WrapWithContext(err, st, StepFinalize, "llm_call", "")
	}
	st.FinalAnswer = resp.Assistant.Content
	return nil
}
