package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/ChamsBouzaiene/rferag/internal/prompts"
)

// decide asks the model which files to explore next and fills st.Pending.
// A reply that cannot be parsed even leniently clears the queue, so the router
// finalizes with what is already known.
func (x *Explorer) decide(ctx context.Context, st *State) (DecisionResult, error) {
	if len(st.Datasources) == 0 {
		return DecisionResult{Kind: DecisionSkipped}, nil
	}

	prompt, err := prompts.Render(x.registry, prompts.ExplorationDecision, map[string]string{
		"main_prompt":             st.MainPrompt,
		"current_context":         FormatContext(st),
		"example_datasource_path": firstRoot(st.Datasources),
	})
	if err != nil {
		return DecisionResult{}, WrapWithContext(err, st, StepDecide, "render_prompt", "")
	}
	msgs := UserMessage(prompt)

	res := x.structuredDecision(ctx, st, msgs)
	if res.Kind == DecisionFailed {
		structuredErr := res.Err
		res = x.lenientDecision(ctx, st, msgs)
		if res.Kind == DecisionLenient {
			res.Err = structuredErr
		}
	}
	if res.Kind == DecisionFailed {
		if ctx.Err() != nil {
			return res, fmt.Errorf("execution cancelled: %w", ctx.Err())
		}
		st.Pending = nil
		return res, nil
	}

	if res.Decision.GiveFinalAnswer {
		st.Pending = nil
	} else {
		st.Pending = ExplorationQueue(res.Decision.Explore)
	}
	return res, nil
}

func (x *Explorer) structuredDecision(ctx context.Context, st *State, msgs []ChatMessage) DecisionResult {
	opts := x.opts.chatOptions()
	opts.JSONMode = true
	resp, err := x.call(ctx, st, StepDecide, x.opts.structuredModel(), msgs, opts)
	if err != nil {
		return DecisionResult{Kind: DecisionFailed, Err: err}
	}
	d, err := ParseStructuredDecision(resp.Assistant.Content)
	if err != nil {
		return DecisionResult{Kind: DecisionFailed, Err: err}
	}
	return DecisionResult{Kind: DecisionStructured, Decision: d}
}

func (x *Explorer) lenientDecision(ctx context.Context, st *State, msgs []ChatMessage) DecisionResult {
	resp, err := x.call(ctx, st, StepDecide, x.opts.Model, msgs, x.opts.chatOptions())
	if err != nil {
		return DecisionResult{Kind: DecisionFailed, Err: err}
	}
	d, err := ParseLenientDecision(resp.Assistant.Content)
	if err != nil {
		return DecisionResult{Kind: DecisionFailed, Err: err}
	}
	return DecisionResult{Kind: DecisionLenient, Decision: d}
}

func firstRoot(ds map[string][]string) string {
	roots := make([]string, 0, len(ds))
	for r := range ds {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	if len(roots) == 0 {
		return ""
	}
	return roots[0]
}
