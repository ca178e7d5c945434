// engine/hooks.go
package engine

import (
	"context"
	"time"
)

type Hook interface {
	OnRunStart(ctx context.Context, st *State)
	OnBeforeLLM(ctx context.Context, st *State, step Step, messages []ChatMessage)
	OnAfterLLM(ctx context.Context, st *State, step Step, resp LLMResponse)
	OnDecision(ctx context.Context, st *State, res DecisionResult)
	OnRoute(ctx context.Context, st *State, route Route)
	OnFileExplored(ctx context.Context, st *State, note FileNote, supported bool)
	OnContextMerged(ctx context.Context, st *State)
	OnStepDone(ctx context.Context, st *State, step Step)
	OnDone(ctx context.Context, st *State, route Route)
	OnError(ctx context.Context, st *State, err error)
	// Retry hooks
	OnRetryAttempt(ctx context.Context, st *State, attempt int, maxAttempts int, delay time.Duration, err error)
}

// NopHook lets you implement any hook you need.
type NopHook struct{}

func (NopHook) OnRunStart(context.Context, *State)                                    {}
func (NopHook) OnBeforeLLM(context.Context, *State, Step, []ChatMessage)              {}
func (NopHook) OnAfterLLM(context.Context, *State, Step, LLMResponse)                 {}
func (NopHook) OnDecision(context.Context, *State, DecisionResult)                    {}
func (NopHook) OnRoute(context.Context, *State, Route)                                {}
func (NopHook) OnFileExplored(context.Context, *State, FileNote, bool)                {}
func (NopHook) OnContextMerged(context.Context, *State)                               {}
func (NopHook) OnStepDone(context.Context, *State, Step)                              {}
func (NopHook) OnDone(context.Context, *State, Route)                                 {}
func (NopHook) OnError(context.Context, *State, error)                                {}
func (NopHook) OnRetryAttempt(context.Context, *State, int, int, time.Duration, error) {}
