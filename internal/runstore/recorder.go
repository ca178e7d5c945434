package runstore

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
)

// Recorder is an engine.Hook persisting every run it observes. Runs are keyed
// by their *engine.State, so one Recorder serves concurrent Answer calls.
// Storage failures are logged and never affect the run.
type Recorder struct {
	engine.NopHook

	store  *Store
	logger *zap.Logger

	mu         sync.Mutex
	runs       map[*engine.State]*Run
	onFinished func(*Run)
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store *Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:  store,
		logger: logger,
		runs:   make(map[*engine.State]*Run),
	}
}

// OnFinished registers a callback run with every finished run.
func (r *Recorder) OnFinished(fn func(*Run)) {
	r.onFinished = fn
}

func (r *Recorder) run(st *engine.State) *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[st]
}

func (r *Recorder) OnRunStart(ctx context.Context, st *engine.State) {
	run, err := r.store.CreateRun(context.WithoutCancel(ctx), st.MainPrompt)
	if err != nil {
		r.logger.Warn("run not recorded", zap.Error(err))
		return
	}
	r.mu.Lock()
	r.runs[st] = run
	r.mu.Unlock()
	r.logger.Debug("run recorded", zap.String("run_id", run.ID))
}

func (r *Recorder) OnDecision(_ context.Context, st *engine.State, res engine.DecisionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run := r.runs[st]; run != nil {
		run.DecisionKind = res.Kind
	}
}

func (r *Recorder) OnStepDone(ctx context.Context, st *engine.State, step engine.Step) {
	run := r.run(st)
	if run == nil {
		return
	}
	if err := r.store.SaveSnapshot(context.WithoutCancel(ctx), run.ID, step, st); err != nil {
		r.logger.Warn("snapshot not recorded", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (r *Recorder) OnDone(ctx context.Context, st *engine.State, route engine.Route) {
	r.finish(ctx, st, func(run *Run) {
		run.Status = StatusDone
		run.Route = route
		run.Answer = st.FinalAnswer
		run.Context = engine.FormatContext(st)
	})
}

func (r *Recorder) OnError(ctx context.Context, st *engine.State, err error) {
	r.finish(ctx, st, func(run *Run) {
		run.Status = StatusFailed
		run.Error = err.Error()
	})
}

func (r *Recorder) finish(ctx context.Context, st *engine.State, set func(*Run)) {
	r.mu.Lock()
	run := r.runs[st]
	delete(r.runs, st)
	r.mu.Unlock()
	if run == nil {
		return
	}

	set(run)
	run.ExplorationCounter = st.ExplorationCounter
	run.NumExplorations = st.NumExplorations
	run.Tokens = st.Totals.Total

	if err := r.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Warn("run outcome not recorded", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	if r.onFinished != nil {
		r.onFinished(run)
	}
}

var _ engine.Hook = (*Recorder)(nil)
