package prompts

// PromptVersion represents a version identifier for prompts.
type PromptVersion string

const (
	// PromptV1 is the built-in version of every template.
	PromptV1 PromptVersion = "1.0.0"
	// PromptLocal marks templates loaded from a user prompts folder. It sorts
	// after every numeric version, so GetLatest prefers it.
	PromptLocal PromptVersion = "local"
)

// Template identifiers used by the explorer and the reader agents.
const (
	ExplorationDecision     = "exploration_decision"
	UpdateInternalContext   = "update_internal_context"
	ContextFromTextFile     = "context_from_text_file"
	ContextFromDataframe    = "context_from_dataframe"
	ContextFromNotebookFile = "context_from_notebook_file"
	ContextFromImage        = "context_from_image"
)

// Prompt represents a versioned prompt with metadata.
type Prompt struct {
	ID          string        // Unique identifier (e.g., "exploration_decision")
	Version     PromptVersion // Version of this prompt
	Content     string        // Template text with {{key}} placeholders
	Description string        // Human-readable description
	Variables   []string      // Placeholders the template expects
	Deprecated  bool          // True if this version is deprecated
}
