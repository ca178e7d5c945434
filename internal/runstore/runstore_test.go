package runstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/rferag/internal/datasource"
	"github.com/ChamsBouzaiene/rferag/internal/engine"
	"github.com/ChamsBouzaiene/rferag/internal/readers"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	run, err := s.CreateRun(ctx, "How many rows?")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)

	st := engine.NewState("How many rows?", map[string][]string{"/p/": {"a.csv"}})
	require.NoError(t, s.SaveSnapshot(ctx, run.ID, engine.StepDecide, st))
	st.ExplorationCounter = 1
	st.Acquired = []engine.FileNote{{Path: "/p/a.csv", Note: "12 rows"}}
	require.NoError(t, s.SaveSnapshot(ctx, run.ID, engine.StepDispatch, st))

	run.Status = StatusDone
	run.Route = engine.RouteSufficientContext
	run.DecisionKind = engine.DecisionStructured
	run.Answer = "12"
	run.ExplorationCounter = 1
	run.NumExplorations = 1
	require.NoError(t, s.FinishRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Status)
	assert.Equal(t, engine.RouteSufficientContext, got.Route)
	assert.Equal(t, engine.DecisionStructured, got.DecisionKind)
	assert.Equal(t, "12", got.Answer)
	assert.False(t, got.FinishedAt.IsZero())

	byPrefix, err := s.GetRun(ctx, run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run.ID, byPrefix.ID)

	snaps, err := s.Snapshots(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps[0].Seq)
	assert.Equal(t, engine.StepDecide, snaps[0].Step)
	assert.Equal(t, engine.StepDispatch, snaps[1].Step)
	assert.Equal(t, 1, snaps[1].Round)
	assert.Equal(t, []engine.FileNote{{Path: "/p/a.csv", Note: "12 rows"}}, snaps[1].State.Acquired)
	assert.Equal(t, map[string][]string{"/p/": {"a.csv"}}, snaps[1].State.Datasources)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRun(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.FinishRun(ctx, &Run{ID: "missing", Status: StatusFailed}), ErrNotFound)
}

func TestStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, q := range []string{"first", "second", "third"} {
		_, err := s.CreateRun(ctx, q)
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].Question)
	assert.Equal(t, "second", runs[1].Question)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// scriptedLLM explores one file, then asks for the final answer.
type scriptedLLM struct {
	mu        sync.Mutex
	decisions int
	root      string
	finalErr  error
}

func (l *scriptedLLM) Chat(_ context.Context, _ string, msgs []engine.ChatMessage, _ engine.ChatOptions) (engine.LLMResponse, error) {
	prompt := msgs[len(msgs)-1].Content
	reply := func(s string) (engine.LLMResponse, error) {
		return engine.LLMResponse{
			Assistant: engine.ChatMessage{Role: engine.RoleAssistant, Content: s},
			Usage:     engine.Usage{Total: 10},
		}, nil
	}

	switch {
	case strings.Contains(prompt, "[[Start of what you know about the project]]"):
		if l.finalErr != nil {
			return engine.LLMResponse{}, l.finalErr
		}
		return reply("forty-two")
	case strings.Contains(prompt, "NEW FINDINGS:"):
		return reply("a.bin cannot be read")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.decisions++
	if l.decisions == 1 {
		return reply(`{"explore": {"` + l.root + `": {"a.bin": "what is inside?"}}}`)
	}
	return reply(`{"give_final_answer": true}`)
}

func newExplorer(t *testing.T, llm *scriptedLLM, hook engine.Hook) *engine.Explorer {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte{0}, 0o644))

	reg := datasource.NewRegistry(datasource.ListOptions{}, nil)
	root, err := reg.Add(dir)
	require.NoError(t, err)
	llm.root = root

	x, err := engine.NewExplorerBuilder().
		WithLLM(llm).
		WithModel("m").
		WithReaders(readers.NewTable(nil)).
		WithCatalog(reg).
		WithHooks(hook).
		Build()
	require.NoError(t, err)
	return x
}

func TestRecorder_RecordsFinishedRun(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	rec := NewRecorder(s, nil)

	var finished []*Run
	rec.OnFinished(func(r *Run) { finished = append(finished, r) })

	x := newExplorer(t, &scriptedLLM{}, rec)
	ans, err := x.Answer(ctx, "What is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", ans.Answer)

	require.Len(t, finished, 1)
	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, finished[0].ID, run.ID)
	assert.Equal(t, StatusDone, run.Status)
	assert.Equal(t, engine.RouteSufficientContext, run.Route)
	assert.Equal(t, engine.DecisionStructured, run.DecisionKind)
	assert.Equal(t, "forty-two", run.Answer)
	assert.Equal(t, ans.Context, run.Context)
	assert.Equal(t, 1, run.ExplorationCounter)
	assert.Equal(t, 0, run.NumExplorations, "unsupported files are not counted")
	assert.Equal(t, 40, run.Tokens)

	snaps, err := s.Snapshots(ctx, run.ID)
	require.NoError(t, err)
	var steps []engine.Step
	for _, sn := range snaps {
		steps = append(steps, sn.Step)
	}
	assert.Equal(t, []engine.Step{
		engine.StepDecide, engine.StepDispatch, engine.StepMerge, engine.StepDecide, engine.StepFinalize,
	}, steps)
}

func TestRecorder_RecordsFailure(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	rec := NewRecorder(s, nil)

	x := newExplorer(t, &scriptedLLM{finalErr: errors.New("provider down")}, rec)
	_, err := x.Answer(ctx, "What is the answer?")
	require.Error(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "provider down")
	assert.Empty(t, runs[0].Route)
}
