package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exploreAandB = `{"explore": {"/proj/": {"a.py": "what does main do", "notes/b.md": "any todo?"}}, "give_final_answer": false}`

func newTestExplorer(t *testing.T, llm LLMClient, reader Reader, limits Limits, hooks ...Hook) *Explorer {
	t.Helper()
	cat := staticCatalog{"/proj/": {"a.py", "notes/b.md", "img/logo.bmp"}}
	x, err := NewExplorerBuilder().
		WithLLM(llm).
		WithModel("plain-model").
		WithStructuredModel("structured-model").
		WithLimits(limits).
		WithReaders(extResolver{"py": reader, "md": reader}).
		WithCatalog(cat).
		WithHooks(hooks...).
		Build()
	require.NoError(t, err)
	return x
}

func TestExplorerBuilder_Validation(t *testing.T) {
	llm := &fakeLLM{}
	tests := []struct {
		name    string
		builder *ExplorerBuilder
		wantErr string
	}{
		{
			name:    "missing LLM",
			builder: NewExplorerBuilder().WithModel("m"),
			wantErr: "LLM client not configured: use WithLLM",
		},
		{
			name:    "missing model",
			builder: NewExplorerBuilder().WithLLM(llm),
			wantErr: "model not configured: use WithModel",
		},
		{
			name:    "missing readers",
			builder: NewExplorerBuilder().WithLLM(llm).WithModel("m"),
			wantErr: "readers not configured: use WithReaders",
		},
		{
			name:    "missing catalog",
			builder: NewExplorerBuilder().WithLLM(llm).WithModel("m").WithReaders(extResolver{}),
			wantErr: "catalog not configured: use WithCatalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestExplorer_NoDatasourcesFinalizesImmediately(t *testing.T) {
	llm := &fakeLLM{}
	x, err := NewExplorerBuilder().
		WithLLM(llm).
		WithModel("m").
		WithReaders(extResolver{}).
		WithCatalog(staticCatalog{}).
		Build()
	require.NoError(t, err)

	ans, err := x.Answer(context.Background(), "what is this?")
	require.NoError(t, err)

	assert.Equal(t, "final answer", ans.Answer)
	assert.Equal(t, 0, ans.ExplorationCounter)
	assert.Equal(t, 0, ans.NumExplorations)
	assert.Empty(t, llm.callsOf(kindDecide))
	assert.Contains(t, ans.Context, InitialDynamicContext)
}

func TestExplorer_GiveFinalAnswerStopsAtOnce(t *testing.T) {
	llm := &fakeLLM{decide: func(int, bool) (string, error) {
		return `{"explore": {"/proj/": {"a.py": "x"}}, "give_final_answer": true}`, nil
	}}
	reader := &echoReader{}
	hook := &recordingHook{}
	x := newTestExplorer(t, llm, reader, DefaultLimits(), hook)

	ans, err := x.Answer(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, 0, ans.ExplorationCounter)
	assert.Empty(t, reader.paths())
	assert.Equal(t, []Route{RouteSufficientContext}, hook.routes)
	assert.Equal(t, []DecisionKind{DecisionStructured}, hook.decisions)
}

func TestExplorer_OneRoundThenSufficient(t *testing.T) {
	llm := &fakeLLM{
		decide: func(n int, _ bool) (string, error) {
			if n == 0 {
				return `{"explore": {"/proj/": {"a.py": "what does main do", "img/logo.bmp": "colors?"}}}`, nil
			}
			return `{"explore": {}, "give_final_answer": false}`, nil
		},
	}
	reader := &echoReader{}
	x := newTestExplorer(t, llm, reader, DefaultLimits())

	ans, err := x.Answer(context.Background(), "what does the app do?")
	require.NoError(t, err)

	assert.Equal(t, 1, ans.ExplorationCounter)
	assert.Equal(t, 1, ans.NumExplorations, "unsupported files are not counted")
	assert.Equal(t, []string{"/proj/a.py"}, reader.paths())
	assert.Contains(t, ans.Context, "notes after round 1")
	assert.NotContains(t, ans.Context, "  notes", "merged context is trimmed")

	merges := llm.callsOf(kindMerge)
	require.Len(t, merges, 1)
	assert.Contains(t, merges[0].Prompt, "[[Start of notes on file: /proj/a.py]]\nPrompt: what does main do\nread /proj/a.py: what does main do\n[[End of notes on file: /proj/a.py]]")
	assert.Contains(t, merges[0].Prompt, "[[Start of notes on file: /proj/img/logo.bmp]]\n"+UnsupportedFileNote+"\n")

	decisions := llm.callsOf(kindDecide)
	require.Len(t, decisions, 2)
	for _, c := range decisions {
		assert.True(t, c.JSONMode)
		assert.Equal(t, "structured-model", c.Model)
	}
	assert.Equal(t, "plain-model", merges[0].Model)

	last := x.LastState()
	require.NotNil(t, last)
	assert.Equal(t, []string{"/proj/a.py"}, last.ExploredFiles)
	assert.Equal(t, "final answer", last.FinalAnswer)
}

func TestExplorer_RoundCapWithRepeatVisits(t *testing.T) {
	llm := &fakeLLM{decide: func(int, bool) (string, error) {
		return `{"explore": {"/proj/": {"a.py": "again"}}}`, nil
	}}
	reader := &echoReader{}
	hook := &recordingHook{}
	x := newTestExplorer(t, llm, reader, DefaultLimits(), hook)

	ans, err := x.Answer(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, 3, ans.ExplorationCounter)
	assert.Equal(t, 3, ans.NumExplorations)
	assert.Equal(t, []Route{RouteExplore, RouteExplore, RouteExplore, RouteMaxExplorations}, hook.routes)
	assert.Len(t, llm.callsOf(kindDecide), 4)

	merges := llm.callsOf(kindMerge)
	require.Len(t, merges, 3)
	assert.NotContains(t, merges[0].Prompt, RepeatVisitWarning)
	assert.Contains(t, merges[1].Prompt, RepeatVisitWarning)
	assert.Contains(t, merges[2].Prompt, RepeatVisitWarning)

	assert.Equal(t, []string{"/proj/a.py"}, x.LastState().ExploredFiles)
}

func TestExplorer_FileCap(t *testing.T) {
	llm := &fakeLLM{decide: func(int, bool) (string, error) { return exploreAandB, nil }}
	reader := &echoReader{}
	hook := &recordingHook{}
	x := newTestExplorer(t, llm, reader, Limits{MaxExplorationCounter: 3, MaxExplorations: 2}, hook)

	ans, err := x.Answer(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, 1, ans.ExplorationCounter)
	assert.Equal(t, 2, ans.NumExplorations)
	assert.Equal(t, []Route{RouteExplore, RouteMaxExplorations}, hook.routes)
}

func TestExplorer_DecisionFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		decide     func(n int, jsonMode bool) (string, error)
		wantKind   DecisionKind
		wantRounds int
	}{
		{
			name: "structured schema violation, lenient recovers",
			decide: func(n int, jsonMode bool) (string, error) {
				switch {
				case jsonMode:
					return `{"explore": ["a.py"]}`, nil
				case n == 1:
					return "Sure! Here is my choice:\n```json\n" + `{"explore": {"/proj/": {"a.py": "main"}}}` + "\n```", nil
				default:
					return `{"give_final_answer": "true"}`, nil
				}
			},
			wantKind:   DecisionLenient,
			wantRounds: 1,
		},
		{
			name: "structured call error, lenient recovers",
			decide: func(n int, jsonMode bool) (string, error) {
				if jsonMode {
					return "", errors.New("json mode unsupported")
				}
				return `{"explore": {}}`, nil
			},
			wantKind:   DecisionLenient,
			wantRounds: 0,
		},
		{
			name: "both fail, exploration stops",
			decide: func(int, bool) (string, error) {
				return "I would like to read a.py please", nil
			},
			wantKind:   DecisionFailed,
			wantRounds: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{decide: tt.decide}
			hook := &recordingHook{}
			x := newTestExplorer(t, llm, &echoReader{}, DefaultLimits(), hook)

			ans, err := x.Answer(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, "final answer", ans.Answer)
			assert.Equal(t, tt.wantRounds, ans.ExplorationCounter)
			require.NotEmpty(t, hook.decisions)
			assert.Equal(t, tt.wantKind, hook.decisions[0])
		})
	}
}

func TestExplorer_ErrorsPropagate(t *testing.T) {
	t.Run("merge error", func(t *testing.T) {
		llm := &fakeLLM{
			decide: func(int, bool) (string, error) { return exploreAandB, nil },
			merge:  func(int, string) (string, error) { return "", errors.New("provider down") },
		}
		hook := &recordingHook{}
		x := newTestExplorer(t, llm, &echoReader{}, DefaultLimits(), hook)

		_, err := x.Answer(context.Background(), "q")
		require.Error(t, err)

		var stepErr *StepError
		require.True(t, errors.As(err, &stepErr))
		assert.Equal(t, StepMerge, stepErr.Step)
		assert.Equal(t, 1, stepErr.Round)
		assert.Len(t, hook.errs, 1)
		assert.Empty(t, llm.callsOf(kindFinal))
	})

	t.Run("reader error", func(t *testing.T) {
		boom := errors.New("permission denied")
		llm := &fakeLLM{decide: func(int, bool) (string, error) { return exploreAandB, nil }}
		reader := &echoReader{fail: map[string]error{"/proj/notes/b.md": boom}}
		x := newTestExplorer(t, llm, reader, DefaultLimits())

		_, err := x.Answer(context.Background(), "q")
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "file=/proj/notes/b.md")

		last := x.LastState()
		require.NotNil(t, last)
		assert.Len(t, last.Pending, 2, "snapshot is taken after the decision, before dispatch")
	})

	t.Run("finalize error", func(t *testing.T) {
		llm := &fakeLLM{
			decide: func(int, bool) (string, error) { return `{}`, nil },
			final:  func(string) (string, error) { return "", errors.New("401 unauthorized") },
		}
		x := newTestExplorer(t, llm, &echoReader{}, DefaultLimits())

		_, err := x.Answer(context.Background(), "q")
		require.Error(t, err)
		var stepErr *StepError
		require.True(t, errors.As(err, &stepErr))
		assert.Equal(t, StepFinalize, stepErr.Step)
	})

	t.Run("cancelled context", func(t *testing.T) {
		llm := &fakeLLM{decide: func(int, bool) (string, error) { return exploreAandB, nil }}
		x := newTestExplorer(t, llm, &echoReader{}, DefaultLimits())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := x.Answer(ctx, "q")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, llm.callsOf(kindDecide))
	})
}

func TestExplorer_ParallelDispatchKeepsOrder(t *testing.T) {
	llm := &fakeLLM{decide: func(n int, _ bool) (string, error) {
		if n == 0 {
			return `{"explore": {"/proj/": {"notes/b.md": "1", "a.py": "2", "img/logo.bmp": "3", "notes//b.md": "4"}}}`, nil
		}
		return `{"give_final_answer": true}`, nil
	}}
	reader := &echoReader{}
	x := newTestExplorer(t, llm, reader, DefaultLimits())
	x.opts.DispatchConcurrency = 3

	ans, err := x.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 3, ans.NumExplorations)

	merge := llm.callsOf(kindMerge)[0].Prompt
	first := strings.Index(merge, "[[Start of notes on file: /proj/notes/b.md]]\nPrompt: 1")
	second := strings.Index(merge, "[[Start of notes on file: /proj/a.py]]")
	third := strings.Index(merge, "[[Start of notes on file: /proj/img/logo.bmp]]")
	fourth := strings.Index(merge, "Prompt: 4")
	require.True(t, first >= 0 && second > first && third > second && fourth > third, merge)
	assert.Contains(t, merge[fourth:], RepeatVisitWarning)
	assert.NotContains(t, merge[first:second], RepeatVisitWarning)
}

func TestDispatch_EmptyQueueStillCountsRound(t *testing.T) {
	x := newTestExplorer(t, &fakeLLM{}, &echoReader{}, DefaultLimits())
	st := NewState("q", nil)

	require.NoError(t, x.dispatch(context.Background(), st))
	assert.Equal(t, 1, st.ExplorationCounter)
	assert.Equal(t, 0, st.NumExplorations)
	assert.Nil(t, st.Acquired)
}

func TestMerge_NoNotesIsNoop(t *testing.T) {
	llm := &fakeLLM{}
	x := newTestExplorer(t, llm, &echoReader{}, DefaultLimits())
	st := NewState("q", nil)

	require.NoError(t, x.merge(context.Background(), st))
	assert.Equal(t, InitialDynamicContext, st.DynamicContext)
	assert.Empty(t, llm.callsOf(kindMerge))
}
