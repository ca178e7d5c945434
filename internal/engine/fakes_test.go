package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

type callKind string

const (
	kindDecide callKind = "decide"
	kindMerge  callKind = "merge"
	kindFinal  callKind = "final"
)

type fakeCall struct {
	Kind     callKind
	Model    string
	Prompt   string
	JSONMode bool
}

// fakeLLM routes each call to a handler by the shape of its prompt.
type fakeLLM struct {
	mu     sync.Mutex
	calls  []fakeCall
	decide func(n int, jsonMode bool) (string, error)
	merge  func(n int, prompt string) (string, error)
	final  func(prompt string) (string, error)
}

func (f *fakeLLM) Chat(_ context.Context, model string, msgs []ChatMessage, opts ChatOptions) (LLMResponse, error) {
	prompt := msgs[len(msgs)-1].Content
	kind := classify(prompt)

	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Kind: kind, Model: model, Prompt: prompt, JSONMode: opts.JSONMode})
	n := f.countLocked(kind) - 1
	f.mu.Unlock()

	var (
		content string
		err     error
	)
	switch kind {
	case kindDecide:
		if f.decide == nil {
			return LLMResponse{}, errors.New("unexpected decision call")
		}
		content, err = f.decide(n, opts.JSONMode)
	case kindMerge:
		if f.merge == nil {
			content = fmt.Sprintf("  notes after round %d  \n", n+1)
		} else {
			content, err = f.merge(n, prompt)
		}
	case kindFinal:
		if f.final == nil {
			content = "final answer"
		} else {
			content, err = f.final(prompt)
		}
	}
	if err != nil {
		return LLMResponse{}, err
	}
	return LLMResponse{
		Assistant: ChatMessage{Role: RoleAssistant, Content: content},
		Usage:     Usage{Prompt: 10, Completion: 5, Total: 15},
	}, nil
}

func (f *fakeLLM) countLocked(kind callKind) int {
	n := 0
	for _, c := range f.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeLLM) callsOf(kind callKind) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func classify(prompt string) callKind {
	switch {
	case strings.Contains(prompt, "[[Start of what you know about the project]]"):
		return kindFinal
	case strings.Contains(prompt, "NEW FINDINGS:"):
		return kindMerge
	default:
		return kindDecide
	}
}

// staticCatalog is an in-memory Catalog.
type staticCatalog map[string][]string

func (c staticCatalog) Add(p string) (string, error) {
	root := strings.TrimSuffix(p, "/") + "/"
	c[root] = nil
	return root, nil
}

func (c staticCatalog) Snapshot() map[string][]string {
	return copyDatasources(c)
}

// extResolver resolves readers by extension only.
type extResolver map[string]Reader

func (r extResolver) Resolve(p string) Reader {
	return r[strings.TrimPrefix(path.Ext(p), ".")]
}

// echoReader returns "read <path>: <subPrompt>" and records paths it saw.
type echoReader struct {
	mu   sync.Mutex
	seen []string
	fail map[string]error
}

func (e *echoReader) Read(_ context.Context, subPrompt, filePath string, st *State) (string, error) {
	e.mu.Lock()
	e.seen = append(e.seen, filePath)
	e.mu.Unlock()
	if err := e.fail[filePath]; err != nil {
		return "", err
	}
	return "read " + filePath + ": " + subPrompt, nil
}

func (e *echoReader) paths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]string(nil), e.seen...)
	sort.Strings(out)
	return out
}

// recordingHook keeps the routes and decision kinds it observed.
type recordingHook struct {
	NopHook
	mu        sync.Mutex
	routes    []Route
	decisions []DecisionKind
	steps     []Step
	errs      []error
}

func (h *recordingHook) OnRoute(_ context.Context, _ *State, r Route) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, r)
}

func (h *recordingHook) OnDecision(_ context.Context, _ *State, res DecisionResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decisions = append(h.decisions, res.Kind)
}

func (h *recordingHook) OnStepDone(_ context.Context, _ *State, s Step) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps = append(h.steps, s)
}

func (h *recordingHook) OnError(_ context.Context, _ *State, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}
