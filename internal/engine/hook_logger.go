// engine/hook_logger.go
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type LoggerHook struct{ L *zap.Logger }

func (h LoggerHook) OnRunStart(_ context.Context, st *State) {
	h.L.Info("run started",
		zap.String("question", preview(st.MainPrompt, 120)),
		zap.Int("datasources", len(st.Datasources)))
}
func (h LoggerHook) OnBeforeLLM(_ context.Context, st *State, step Step, msgs []ChatMessage) {
	tokens, _ := CountTokensForMessages(DefaultTokenizer{}, msgs, "")
	h.L.Debug("llm call",
		zap.String("step", string(step)),
		zap.Int("round", st.ExplorationCounter),
		zap.Int("messages", len(msgs)),
		zap.Int("est_tokens", tokens))
}
func (h LoggerHook) OnAfterLLM(_ context.Context, st *State, step Step, r LLMResponse) {
	h.L.Debug("llm reply",
		zap.String("step", string(step)),
		zap.String("finish", r.FinishReason),
		zap.Int("prompt_tokens", r.Usage.Prompt),
		zap.Int("completion_tokens", r.Usage.Completion),
		zap.Int("cumulative", st.Totals.Total))
}
func (h LoggerHook) OnDecision(_ context.Context, st *State, res DecisionResult) {
	fields := []zap.Field{
		zap.String("kind", string(res.Kind)),
		zap.Int("requested", len(st.Pending)),
		zap.Bool("give_final_answer", res.Decision.GiveFinalAnswer),
	}
	switch res.Kind {
	case DecisionFailed:
		h.L.Warn("decision unparseable, stopping exploration", append(fields, zap.Error(res.Err))...)
	case DecisionLenient:
		h.L.Info("decision recovered from plain reply", append(fields, zap.NamedError("structured_error", res.Err))...)
	default:
		h.L.Info("decision", fields...)
	}
}
func (h LoggerHook) OnRoute(_ context.Context, st *State, r Route) {
	h.L.Info("route",
		zap.String("route", string(r)),
		zap.Int("round", st.ExplorationCounter),
		zap.Int("files", st.NumExplorations))
}
func (h LoggerHook) OnFileExplored(_ context.Context, _ *State, n FileNote, supported bool) {
	if !supported {
		h.L.Warn("unsupported file", zap.String("path", n.Path))
		return
	}
	h.L.Info("file explored", zap.String("path", n.Path), zap.Int("note_len", len(n.Note)))
}
func (h LoggerHook) OnContextMerged(_ context.Context, st *State) {
	h.L.Debug("context merged", zap.Int("context_len", len(st.DynamicContext)))
}
func (h LoggerHook) OnStepDone(_ context.Context, _ *State, _ Step) {}
func (h LoggerHook) OnDone(_ context.Context, st *State, r Route) {
	h.L.Info("done",
		zap.String("route", string(r)),
		zap.Int("rounds", st.ExplorationCounter),
		zap.Int("files", st.NumExplorations),
		zap.Int("tokens", st.Totals.Total))
}
func (h LoggerHook) OnError(_ context.Context, st *State, err error) {
	h.L.Error("run failed", zap.Int("round", st.ExplorationCounter), zap.Error(err))
}
func (h LoggerHook) OnRetryAttempt(_ context.Context, _ *State, attempt int, maxAttempts int, delay time.Duration, err error) {
	h.L.Warn("retry",
		zap.Int("attempt", attempt),
		zap.Int("max", maxAttempts),
		zap.Duration("delay", delay),
		zap.Error(err))
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
