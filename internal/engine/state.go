package engine

import "context"

// InitialDynamicContext is the running summary before anything was explored.
const InitialDynamicContext = "No information about the project yet"

// Step names one stage of the exploration loop.
type Step string

const (
	StepDecide   Step = "decide"
	StepDispatch Step = "dispatch"
	StepMerge    Step = "merge"
	StepFinalize Step = "finalize"
)

// FileRequest is one file the decision step wants read, with the focused
// question to ask about it.
type FileRequest struct {
	Path      string `json:"path"`
	SubPrompt string `json:"sub_prompt"`
}

// FileNote is what a reader agent produced for one file.
type FileNote struct {
	Path string `json:"path"`
	Note string `json:"note"`
}

// State is the working memory of a single Answer call.
type State struct {
	MainPrompt     string              `json:"main_prompt"`
	DynamicContext string              `json:"dynamic_context"`
	Datasources    map[string][]string `json:"datasources"`

	Pending  []FileRequest `json:"pending"`  // filled by decide, drained by dispatch
	Acquired []FileNote    `json:"acquired"` // filled by dispatch, drained by merge

	FinalAnswer        string   `json:"final_answer"`
	ExplorationCounter int      `json:"exploration_counter"` // rounds through dispatch
	NumExplorations    int      `json:"num_explorations"`    // files handed to a reader
	ExploredFiles      []string `json:"explored_files"`

	Totals Usage `json:"-"`
}

// NewState creates the initial state for a question. The datasources map is
// copied so the run never observes later registry changes.
func NewState(question string, datasources map[string][]string) *State {
	return &State{
		MainPrompt:     question,
		DynamicContext: InitialDynamicContext,
		Datasources:    copyDatasources(datasources),
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := *s
	c.Datasources = copyDatasources(s.Datasources)
	c.Pending = append([]FileRequest(nil), s.Pending...)
	c.Acquired = append([]FileNote(nil), s.Acquired...)
	c.ExploredFiles = append([]string(nil), s.ExploredFiles...)
	return &c
}

func (s *State) explored(path string) bool {
	for _, p := range s.ExploredFiles {
		if p == path {
			return true
		}
	}
	return false
}

func copyDatasources(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Reader extracts a note from one file, focused on subPrompt. Implementations
// may read any part of st but must not modify it.
type Reader interface {
	Read(ctx context.Context, subPrompt, filePath string, st *State) (string, error)
}

// ReaderFunc adapts a plain function to the Reader interface.
type ReaderFunc func(ctx context.Context, subPrompt, filePath string, st *State) (string, error)

func (f ReaderFunc) Read(ctx context.Context, subPrompt, filePath string, st *State) (string, error) {
	return f(ctx, subPrompt, filePath, st)
}

// ReaderResolver picks the reader for a path; nil means unsupported.
type ReaderResolver interface {
	Resolve(filePath string) Reader
}
