package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerHook_DecisionLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := LoggerHook{L: zap.New(core)}
	st := NewState("q", nil)
	ctx := context.Background()

	h.OnDecision(ctx, st, DecisionResult{Kind: DecisionStructured})
	h.OnDecision(ctx, st, DecisionResult{Kind: DecisionLenient, Err: errors.New("schema")})
	h.OnDecision(ctx, st, DecisionResult{Kind: DecisionFailed, Err: errors.New("garbage")})
	h.OnFileExplored(ctx, st, FileNote{Path: "/p/x.bin"}, false)

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "schema", entries[1].ContextMap()["structured_error"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
	assert.Equal(t, "/p/x.bin", entries[3].ContextMap()["path"])
}

func TestEventHook_DropNeverBlocks(t *testing.T) {
	ch := make(chan Event, 1)
	h := EventHook{Ch: ch, Drop: true}
	st := NewState("q", nil)

	h.OnRoute(context.Background(), st, RouteExplore)
	h.OnRoute(context.Background(), st, RouteSufficientContext) // dropped, buffer full

	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, "route", ev.Kind)
	assert.Equal(t, RouteExplore, ev.Data)
}

func TestEventHook_BlockingSendHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := EventHook{Ch: make(chan Event)}
	h.OnError(ctx, NewState("q", nil), errors.New("boom")) // returns once ctx is done
}

func TestHooks_FanOut(t *testing.T) {
	a, b := &recordingHook{}, &recordingHook{}
	hs := Hooks{a, b}
	st := NewState("q", nil)

	hs.OnRoute(context.Background(), st, RouteMaxExplorations)
	hs.OnStepDone(context.Background(), st, StepMerge)

	for _, h := range []*recordingHook{a, b} {
		assert.Equal(t, []Route{RouteMaxExplorations}, h.routes)
		assert.Equal(t, []Step{StepMerge}, h.steps)
	}
}
