package factory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ChamsBouzaiene/rferag/internal/config"
	"github.com/ChamsBouzaiene/rferag/internal/engine"
	"github.com/ChamsBouzaiene/rferag/internal/runstore"
)

// oneShotLLM reads notes.txt once, then answers.
type oneShotLLM struct {
	root    string
	decided bool
}

func (l *oneShotLLM) Chat(_ context.Context, _ string, msgs []engine.ChatMessage, _ engine.ChatOptions) (engine.LLMResponse, error) {
	prompt := msgs[len(msgs)-1].Content
	var out string
	switch {
	case strings.Contains(prompt, "[[Start of what you know about the project]]"):
		out = "The notes mention a deadline in May."
	case strings.Contains(prompt, "NEW FINDINGS:"):
		out = "notes.txt: deadline in May"
	case strings.Contains(prompt, "deadline: May"):
		out = "the deadline is May"
	case !l.decided:
		l.decided = true
		out = `{"explore": {"` + l.root + `": {"notes.txt": "when is the deadline?"}}}`
	default:
		out = `{"give_final_answer": true}`
	}
	return engine.LLMResponse{Assistant: engine.ChatMessage{Role: engine.RoleAssistant, Content: out}}, nil
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("deadline: May\n"), 0o644))

	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Datasources.Paths = []string{src}
	return cfg, src
}

func TestBuild_AnswersAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	cfg, src := testConfig(t)

	llm := &oneShotLLM{root: filepath.ToSlash(src) + "/"}
	app, err := Build(ctx, Options{Config: cfg, LLM: llm, Model: "m"})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "m", app.Model)
	assert.Equal(t, []string{"notes.txt"}, app.Registry.Snapshot()[llm.root])

	ans, err := app.Explorer.Answer(ctx, "When is the deadline?")
	require.NoError(t, err)
	assert.Equal(t, "The notes mention a deadline in May.", ans.Answer)
	assert.Equal(t, 1, ans.NumExplorations)

	runs, err := app.Store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runstore.StatusDone, runs[0].Status)

	hits, err := app.Archive.Search("deadline", "", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, runs[0].ID, hits[0].RunID)
}

func TestBuild_HistoryDisabled(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.History = false

	app, err := Build(context.Background(), Options{Config: cfg, LLM: &oneShotLLM{}, Model: "m"})
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Store)
	assert.Nil(t, app.Archive)
	_, err = os.Stat(cfg.DataDir)
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_ConfigModelOverrides(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.History = false
	cfg.Model = "configured"

	app, err := Build(context.Background(), Options{Config: cfg, LLM: &oneShotLLM{}, Model: "m"})
	require.NoError(t, err)
	defer app.Close()
	assert.Equal(t, "configured", app.Model)
	assert.Equal(t, "configured", app.Explorer.Options().Model)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		opts   Options
		want   string
	}{
		{
			name:   "unknown provider",
			mutate: func(c *config.Config) { c.Provider = "nope" },
			want:   "unknown LLM_PROVIDER",
		},
		{
			name:   "missing datasource",
			mutate: func(c *config.Config) { c.Datasources.Paths = []string{"/does/not/exist"} },
			opts:   Options{LLM: &oneShotLLM{}, Model: "m"},
			want:   "failed to add datasource",
		},
		{
			name:   "missing prompts dir",
			mutate: func(c *config.Config) { c.PromptsDir = "/does/not/exist" },
			opts:   Options{LLM: &oneShotLLM{}, Model: "m"},
			want:   "prompt overrides",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := testConfig(t)
			tt.mutate(cfg)
			opts := tt.opts
			opts.Config = cfg
			_, err := Build(context.Background(), opts)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestBuild_WatchAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg, _ := testConfig(t)
	cfg.History = false
	cfg.Datasources.Watch = true

	app, err := Build(context.Background(), Options{Config: cfg, LLM: &oneShotLLM{}, Model: "m"})
	require.NoError(t, err)
	require.NotNil(t, app.Watcher)

	extra := t.TempDir()
	root, err := app.AddDatasource(extra)
	require.NoError(t, err)
	assert.Contains(t, app.Registry.Roots(), root)

	require.NoError(t, app.Close())
	assert.Nil(t, app.Watcher)
}

func TestOpenHistory(t *testing.T) {
	dir := t.TempDir()
	app, err := OpenHistory(context.Background(), dir, nil)
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Store)
	require.NotNil(t, app.Archive)
	assert.FileExists(t, filepath.Join(dir, "runs.db"))
}
