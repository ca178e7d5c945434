package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/rferag/internal/prompts"
)

// ExplorerBuilder helps construct an Explorer with a fluent API.
type ExplorerBuilder struct {
	opts     Options
	llm      LLMClient
	readers  ReaderResolver
	catalog  Catalog
	registry *prompts.PromptRegistry
	hooks    Hooks
}

// NewExplorerBuilder creates a new explorer builder with default configuration.
func NewExplorerBuilder() *ExplorerBuilder {
	return &ExplorerBuilder{
		opts: DefaultOptions(),
	}
}

// WithLLM sets the LLM client.
func (b *ExplorerBuilder) WithLLM(llm LLMClient) *ExplorerBuilder {
	b.llm = llm
	return b
}

// WithModel sets the model name used for plain calls.
func (b *ExplorerBuilder) WithModel(model string) *ExplorerBuilder {
	b.opts.Model = model
	return b
}

// WithStructuredModel sets the model used for the decision step.
// If not set, the plain model is used.
func (b *ExplorerBuilder) WithStructuredModel(model string) *ExplorerBuilder {
	b.opts.StructuredModel = model
	return b
}

// WithLimits sets the round and file caps.
func (b *ExplorerBuilder) WithLimits(limits Limits) *ExplorerBuilder {
	b.opts.Limits = limits
	return b
}

// WithRetryConfig sets the retry configuration.
func (b *ExplorerBuilder) WithRetryConfig(retryConfig RetryConfig) *ExplorerBuilder {
	b.opts.Retry = retryConfig
	return b
}

// WithTemperature sets the sampling temperature for every call.
func (b *ExplorerBuilder) WithTemperature(t float32) *ExplorerBuilder {
	b.opts.Temperature = t
	return b
}

// WithMaxOutputTokens sets the maximum output tokens for LLM responses.
// 0 leaves the provider default.
func (b *ExplorerBuilder) WithMaxOutputTokens(tokens int) *ExplorerBuilder {
	b.opts.MaxOutputTokens = tokens
	return b
}

// WithDispatchConcurrency sets how many reader agents of one round may run at once.
func (b *ExplorerBuilder) WithDispatchConcurrency(n int) *ExplorerBuilder {
	b.opts.DispatchConcurrency = n
	return b
}

// WithReaders sets the reader resolver.
func (b *ExplorerBuilder) WithReaders(r ReaderResolver) *ExplorerBuilder {
	b.readers = r
	return b
}

// WithCatalog sets the datasource catalog.
func (b *ExplorerBuilder) WithCatalog(c Catalog) *ExplorerBuilder {
	b.catalog = c
	return b
}

// WithPromptRegistry sets the template registry. Defaults to prompts.DefaultRegistry().
func (b *ExplorerBuilder) WithPromptRegistry(r *prompts.PromptRegistry) *ExplorerBuilder {
	b.registry = r
	return b
}

// WithHooks appends hooks.
func (b *ExplorerBuilder) WithHooks(hooks ...Hook) *ExplorerBuilder {
	b.hooks = append(b.hooks, hooks...)
	return b
}

// WithLogger adds a LoggerHook writing to l.
func (b *ExplorerBuilder) WithLogger(l *zap.Logger) *ExplorerBuilder {
	if l != nil {
		b.hooks = append(b.hooks, LoggerHook{L: l})
	}
	return b
}

// Build creates the Explorer.
func (b *ExplorerBuilder) Build() (*Explorer, error) {
	if b.llm == nil {
		return nil, fmt.Errorf("LLM client not configured: use WithLLM")
	}
	if b.opts.Model == "" {
		return nil, fmt.Errorf("model not configured: use WithModel")
	}
	if b.readers == nil {
		return nil, fmt.Errorf("readers not configured: use WithReaders")
	}
	if b.catalog == nil {
		return nil, fmt.Errorf("catalog not configured: use WithCatalog")
	}
	if b.opts.Limits.MaxExplorationCounter < 0 || b.opts.Limits.MaxExplorations < 0 {
		return nil, fmt.Errorf("limits must not be negative: %+v", b.opts.Limits)
	}
	if b.opts.DispatchConcurrency < 1 {
		b.opts.DispatchConcurrency = 1
	}

	registry := b.registry
	if registry == nil {
		registry = prompts.DefaultRegistry()
	}

	return &Explorer{
		llm:      b.llm,
		readers:  b.readers,
		catalog:  b.catalog,
		registry: registry,
		opts:     b.opts,
		hooks:    append(Hooks(nil), b.hooks...),
	}, nil
}
