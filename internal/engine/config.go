package engine

import "time"

// Limits bounds one exploration run. Both caps route to the same
// "max explorations reached" branch.
type Limits struct {
	MaxExplorationCounter int `yaml:"max_exploration_counter"` // rounds
	MaxExplorations       int `yaml:"max_explorations"`        // files dispatched
}

// DefaultLimits returns the stock caps: 3 rounds, 15 files.
func DefaultLimits() Limits {
	return Limits{
		MaxExplorationCounter: 3,
		MaxExplorations:       15,
	}
}

// Options holds all explorer configuration options.
type Options struct {
	Model           string // model for plain calls (readers, merge, finalize)
	StructuredModel string // model for the decision step and data previews; empty = Model
	Limits          Limits
	Retry           RetryConfig
	Temperature     float32
	MaxOutputTokens int
	// DispatchConcurrency > 1 runs the reader agents of one round in parallel.
	// Notes are still annotated and ordered as if read sequentially.
	DispatchConcurrency int
}

// DefaultOptions returns a default explorer configuration.
func DefaultOptions() Options {
	return Options{
		Limits:              DefaultLimits(),
		Retry:               DefaultRetryConfig(),
		DispatchConcurrency: 1,
	}
}

func (o Options) structuredModel() string {
	if o.StructuredModel != "" {
		return o.StructuredModel
	}
	return o.Model
}

func (o Options) chatOptions() ChatOptions {
	return ChatOptions{
		Temperature:     o.Temperature,
		MaxOutputTokens: o.MaxOutputTokens,
		RetryConfig:     &o.Retry,
	}
}

// DefaultRetryConfig returns the default model-call policy. MaxRetries is 0 so a
// failing call surfaces immediately; the backoff knobs apply once retries are
// enabled through configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		LLMPolicy: RetryPolicy{
			MaxRetries:   0,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}
