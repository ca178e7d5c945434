package engine

import (
	"context"
	"sync"
	"time"

	"github.com/ChamsBouzaiene/rferag/internal/prompts"
)

// Catalog is the set of datasources an explorer answers from.
type Catalog interface {
	// Add enumerates path and registers it, returning the normalized root key.
	Add(path string) (string, error)
	// Snapshot returns a copy of root -> relative files.
	Snapshot() map[string][]string
}

// Answer is what a caller gets back from Explorer.Answer.
type Answer struct {
	Answer             string `json:"answer"`
	Context            string `json:"context"`
	ExplorationCounter int    `json:"exploration_counter"`
	NumExplorations    int    `json:"num_explorations"`
}

// Explorer answers questions by iteratively reading files from its catalog.
// A single Explorer may serve concurrent Answer calls; each call gets its own State.
type Explorer struct {
	llm      LLMClient
	readers  ReaderResolver
	catalog  Catalog
	registry *prompts.PromptRegistry
	opts     Options
	hooks    Hooks

	mu        sync.Mutex
	lastState *State
}

// Answer runs the exploration loop for question and returns the final answer
// together with the formatted context it was given.
func (x *Explorer) Answer(ctx context.Context, question string) (Answer, error) {
	st := NewState(question, x.catalog.Snapshot())
	if _, err := x.Run(ctx, st); err != nil {
		return Answer{}, err
	}
	return Answer{
		Answer:             st.FinalAnswer,
		Context:            FormatContext(st),
		ExplorationCounter: st.ExplorationCounter,
		NumExplorations:    st.NumExplorations,
	}, nil
}

// AddDatasource registers a directory tree for subsequent Answer calls.
func (x *Explorer) AddDatasource(path string) (string, error) {
	return x.catalog.Add(path)
}

// Datasources returns the catalog's current contents.
func (x *Explorer) Datasources() map[string][]string {
	return x.catalog.Snapshot()
}

// Options returns the explorer configuration.
func (x *Explorer) Options() Options {
	return x.opts
}

// LastState returns a copy of the state as of the last completed step, or nil
// before the first run.
func (x *Explorer) LastState() *State {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.lastState == nil {
		return nil
	}
	return x.lastState.Clone()
}

func (x *Explorer) recordStep(ctx context.Context, st *State, step Step) {
	x.mu.Lock()
	x.lastState = st.Clone()
	x.mu.Unlock()
	x.hooks.OnStepDone(ctx, st, step)
}

// call performs one model call with the configured retry policy, feeding hooks
// and the state's usage totals.
func (x *Explorer) call(ctx context.Context, st *State, step Step, model string, msgs []ChatMessage, opts ChatOptions) (LLMResponse, error) {
	x.hooks.OnBeforeLLM(ctx, st, step, msgs)

	policy := x.opts.Retry.LLMPolicy
	if opts.RetryConfig != nil {
		policy = opts.RetryConfig.LLMPolicy
	}
	resp, err := RetryLLMCall(ctx, policy, x.llm, model, msgs, opts, func(attempt int, delay time.Duration, err error) {
		x.hooks.OnRetryAttempt(ctx, st, attempt, policy.MaxRetries, delay, err)
	})
	if err != nil {
		return LLMResponse{}, err
	}

	st.Totals.Add(resp.Usage)
	x.hooks.OnAfterLLM(ctx, st, step, resp)
	return resp, nil
}
