package prompts

func init() {
	registry := DefaultRegistry()

	registry.Register(&Prompt{
		ID:      ContextFromTextFile,
		Version: PromptV1,
		Content: `You are reading one file on behalf of a research assistant.

The assistant is trying to answer: {{main_prompt}}
For this file, it asked you: {{specific_prompt}}

FILE: {{file_path}}
[[Start of file content]]
{{file_content}}
[[End of file content]]

Report what this file contains that is relevant to the request. Quote names, values and short snippets exactly when they matter.
Mention other files this one references if they look relevant. If the file holds nothing useful, say so in one sentence.`,
		Description: "Extracts relevant notes from a text or source file",
		Variables:   []string{"main_prompt", "specific_prompt", "file_path", "file_content"},
	})

	registry.Register(&Prompt{
		ID:      ContextFromDataframe,
		Version: PromptV1,
		Content: `You are inspecting one tabular data file on behalf of a research assistant.

The assistant is trying to answer: {{main_prompt}}
For this file, it asked you: {{specific_prompt}}

FILE: {{file_path}}
[[Start of data preview]]
{{data_preview}}
[[End of data preview]]

Describe the structure of the data (columns, types you can infer, size) and everything in the preview relevant to the request.
Be explicit that only a preview of the rows was shown when the answer depends on rows you could not see.`,
		Description: "Extracts relevant notes from a csv, parquet or xlsx preview",
		Variables:   []string{"main_prompt", "specific_prompt", "file_path", "data_preview"},
	})

	registry.Register(&Prompt{
		ID:      ContextFromNotebookFile,
		Version: PromptV1,
		Content: `You are reading one Jupyter notebook on behalf of a research assistant.

The assistant is trying to answer: {{main_prompt}}
For this notebook, it asked you: {{specific_prompt}}

FILE: {{file_path}}
[[Start of notebook]]
{{notebook_content}}
[[End of notebook]]

Report what the notebook does and what its cells and outputs show that is relevant to the request.
Quote code, numbers and output values exactly when they matter. If nothing is relevant, say so in one sentence.`,
		Description: "Extracts relevant notes from a notebook's cells and outputs",
		Variables:   []string{"main_prompt", "specific_prompt", "file_path", "notebook_content"},
	})

	registry.Register(&Prompt{
		ID:      ContextFromImage,
		Version: PromptV1,
		Content: `You are looking at one image on behalf of a research assistant.

The assistant is trying to answer: {{main_prompt}}
For this image, it asked you: {{specific_prompt}}

FILE: {{file_path}}

Describe what the image shows that is relevant to the request, including any text, labels, numbers or diagrams it contains.`,
		Description: "Describes an attached image",
		Variables:   []string{"main_prompt", "specific_prompt", "file_path"},
	})
}
