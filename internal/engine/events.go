package engine

import (
	"context"
	"time"
)

type Event struct {
	Kind string // "run_start", "decision", "route", "file", "merged", "done", "error", "retry_attempt"
	Data any
}

// EventHook bridges engine → UI channel. Sends are non-blocking when Drop is
// set, so a slow consumer never stalls a run.
type EventHook struct {
	Ch   chan<- Event
	Drop bool
}

func (h EventHook) send(ctx context.Context, e Event) {
	if h.Drop {
		select {
		case h.Ch <- e:
		default:
		}
		return
	}
	select {
	case h.Ch <- e:
	case <-ctx.Done():
	}
}

func (h EventHook) OnRunStart(ctx context.Context, st *State) {
	h.send(ctx, Event{Kind: "run_start", Data: st.MainPrompt})
}
func (h EventHook) OnBeforeLLM(context.Context, *State, Step, []ChatMessage) {}
func (h EventHook) OnAfterLLM(context.Context, *State, Step, LLMResponse)    {}
func (h EventHook) OnDecision(ctx context.Context, st *State, res DecisionResult) {
	h.send(ctx, Event{Kind: "decision", Data: map[string]any{
		"kind":  string(res.Kind),
		"files": len(st.Pending),
	}})
}
func (h EventHook) OnRoute(ctx context.Context, _ *State, r Route) {
	h.send(ctx, Event{Kind: "route", Data: r})
}
func (h EventHook) OnFileExplored(ctx context.Context, _ *State, n FileNote, supported bool) {
	h.send(ctx, Event{Kind: "file", Data: map[string]any{"path": n.Path, "supported": supported}})
}
func (h EventHook) OnContextMerged(ctx context.Context, st *State) {
	h.send(ctx, Event{Kind: "merged", Data: st.ExplorationCounter})
}
func (h EventHook) OnStepDone(context.Context, *State, Step) {}
func (h EventHook) OnDone(ctx context.Context, st *State, r Route) {
	h.send(ctx, Event{Kind: "done", Data: map[string]any{
		"route":  r,
		"rounds": st.ExplorationCounter,
		"files":  st.NumExplorations,
	}})
}
func (h EventHook) OnError(ctx context.Context, _ *State, err error) {
	h.send(ctx, Event{Kind: "error", Data: err.Error()})
}
func (h EventHook) OnRetryAttempt(ctx context.Context, _ *State, attempt int, maxAttempts int, delay time.Duration, err error) {
	h.send(ctx, Event{Kind: "retry_attempt", Data: map[string]any{
		"attempt":     attempt,
		"maxAttempts": maxAttempts,
		"delay":       delay,
		"error":       err.Error(),
	}})
}
