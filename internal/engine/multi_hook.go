package engine

import (
	"context"
	"time"
)

type Hooks []Hook

func (hs Hooks) OnRunStart(ctx context.Context, st *State) {
	for _, h := range hs {
		h.OnRunStart(ctx, st)
	}
}
func (hs Hooks) OnBeforeLLM(ctx context.Context, st *State, step Step, m []ChatMessage) {
	for _, h := range hs {
		h.OnBeforeLLM(ctx, st, step, m)
	}
}
func (hs Hooks) OnAfterLLM(ctx context.Context, st *State, step Step, r LLMResponse) {
	for _, h := range hs {
		h.OnAfterLLM(ctx, st, step, r)
	}
}
func (hs Hooks) OnDecision(ctx context.Context, st *State, res DecisionResult) {
	for _, h := range hs {
		h.OnDecision(ctx, st, res)
	}
}
func (hs Hooks) OnRoute(ctx context.Context, st *State, r Route) {
	for _, h := range hs {
		h.OnRoute(ctx, st, r)
	}
}
func (hs Hooks) OnFileExplored(ctx context.Context, st *State, n FileNote, supported bool) {
	for _, h := range hs {
		h.OnFileExplored(ctx, st, n, supported)
	}
}
func (hs Hooks) OnContextMerged(ctx context.Context, st *State) {
	for _, h := range hs {
		h.OnContextMerged(ctx, st)
	}
}
func (hs Hooks) OnStepDone(ctx context.Context, st *State, step Step) {
	for _, h := range hs {
		h.OnStepDone(ctx, st, step)
	}
}
func (hs Hooks) OnDone(ctx context.Context, st *State, r Route) {
	for _, h := range hs {
		h.OnDone(ctx, st, r)
	}
}
func (hs Hooks) OnError(ctx context.Context, st *State, err error) {
	for _, h := range hs {
		h.OnError(ctx, st, err)
	}
}
func (hs Hooks) OnRetryAttempt(ctx context.Context, st *State, attempt int, maxAttempts int, delay time.Duration, err error) {
	for _, h := range hs {
		h.OnRetryAttempt(ctx, st, attempt, maxAttempts, delay, err)
	}
}
