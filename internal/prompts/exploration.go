package prompts

func init() {
	registry := DefaultRegistry()

	registry.Register(&Prompt{
		ID:      ExplorationDecision,
		Version: PromptV1,
		Content: `You are a research assistant answering a question about a project made of one or more datasources (directories of files).
You cannot read files yourself. Instead, you decide which files should be explored next; a specialised agent will read each file and report back on it.

QUESTION:
{{main_prompt}}

WHAT YOU KNOW SO FAR:
{{current_context}}

Decide whether the notes above already answer the question.
- If they do, or if no file could add anything useful, set "give_final_answer" to true and leave "explore" empty.
- Otherwise, choose the few files most likely to contain the missing information. For each one, write a short, specific question for the reading agent.
- Only request files that appear in the datasource listing, using the datasource path exactly as listed and the file path relative to it.
- Do not request files that the notes say were already explored unless you need something different from them.

Reply with a single JSON object and nothing else:
{
  "explore": {
    "{{example_datasource_path}}": {
      "relative/path/to/file.ext": "what to look for in this file"
    }
  },
  "give_final_answer": false
}`,
		Description: "Decides which files to explore next, or that the context is sufficient",
		Variables:   []string{"main_prompt", "current_context", "example_datasource_path"},
	})

	registry.Register(&Prompt{
		ID:      UpdateInternalContext,
		Version: PromptV1,
		Content: `You maintain the working notes of a research assistant that answers questions about a project.

QUESTION:
{{main_prompt}}

PROJECT STRUCTURE (datasource -> files):
{{project_structure}}

CURRENT NOTES:
{{current_context}}

NEW FINDINGS:
{{incoming_context}}

Rewrite the notes so they integrate the new findings.
- Keep every fact that helps answer the question, and say which file it came from.
- Record which files were explored and whether they turned out to be useful, so they are not explored again.
- Drop repetition and anything irrelevant to the question.
- Note open points that still need a file to be explored.

Reply with the updated notes only.`,
		Description: "Merges reader-agent notes into the running project notes",
		Variables:   []string{"main_prompt", "project_structure", "current_context", "incoming_context"},
	})
}
