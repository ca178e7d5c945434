package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatContext(t *testing.T) {
	st := NewState("q", map[string][]string{
		"/proj/": {"a.py", "notes/b.md"},
	})

	want := "Available datasources:\n'{\"/proj/\":[\"a.py\",\"notes/b.md\"]}'\n\n" +
		"[[Start of Project notes]]\nNo information about the project yet\n[[End of Project notes]]"
	assert.Equal(t, want, FormatContext(st))
}

func TestFinalPrompt(t *testing.T) {
	st := NewState("How many rows?", nil)
	st.DynamicContext = "data.csv has 12 rows"

	want := "How many rows?\n\n[[Start of what you know about the project]]\n" +
		"Available datasources:\n'{}'\n\n[[Start of Project notes]]\ndata.csv has 12 rows\n[[End of Project notes]]" +
		"\n[[End of what you know about the project]]"
	assert.Equal(t, want, FinalPrompt(st))
}

func TestExplorationQueue(t *testing.T) {
	var explore ExploreMap
	require.NoError(t, json.Unmarshal([]byte(`{
		"/proj/": {"src/z.py": "zeta", "a.py": "alpha"},
		"/data": {"/x.csv": "rows"},
		"/empty/": {}
	}`), &explore))

	got := ExplorationQueue(explore)
	assert.Equal(t, []FileRequest{
		{Path: "/proj/src/z.py", SubPrompt: "zeta"},
		{Path: "/proj/a.py", SubPrompt: "alpha"},
		{Path: "/data/x.csv", SubPrompt: "rows"},
	}, got)
}

func TestExplorationQueue_Empty(t *testing.T) {
	assert.Empty(t, ExplorationQueue(nil))
}

func TestIncomingContext(t *testing.T) {
	got := IncomingContext([]FileNote{
		{Path: "/p/a.py", Note: "alpha"},
		{Path: "/p/b.md", Note: "beta"},
	})
	want := "This is the context acquired from the exploration:\n\n" +
		"\n[[Start of notes on file: /p/a.py]]\nalpha\n[[End of notes on file: /p/a.py]]\n" +
		"\n[[Start of notes on file: /p/b.md]]\nbeta\n[[End of notes on file: /p/b.md]]\n"
	assert.Equal(t, want, got)
}

func TestStateClone(t *testing.T) {
	st := NewState("q", map[string][]string{"/p/": {"a.py"}})
	st.ExploredFiles = []string{"/p/a.py"}

	c := st.Clone()
	c.Datasources["/p/"][0] = "changed"
	c.ExploredFiles[0] = "changed"

	assert.Equal(t, "a.py", st.Datasources["/p/"][0])
	assert.Equal(t, "/p/a.py", st.ExploredFiles[0])
}
