package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DecisionSchema is the JSON schema a structured decision reply must satisfy.
// Both fields are optional and default to "nothing to explore" / false.
const DecisionSchema = `{
  "type": "object",
  "properties": {
    "explore": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": {"type": "string"}
      }
    },
    "give_final_answer": {"type": "boolean"}
  }
}`

var decisionSchema = mustCompileSchema(DecisionSchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("engine: invalid built-in schema: %v", err))
	}
	return s
}

// ExploreFile is one file entry of a decision, with its focused question.
type ExploreFile struct {
	File   string
	Prompt string
}

// ExploreSource groups the requested files of one datasource root.
type ExploreSource struct {
	Source string
	Files  []ExploreFile
}

// ExploreMap is the decision's source -> {file -> sub_prompt} mapping. It keeps
// the key order of the reply so the exploration queue follows response order.
type ExploreMap []ExploreSource

// UnmarshalJSON decodes a nested JSON object while preserving key order.
func (m *ExploreMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("explore: expected object, got %v", tok)
	}

	var out ExploreMap
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return err
		}
		src := ExploreSource{Source: key.(string)}

		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return fmt.Errorf("explore[%q]: expected object, got %v", src.Source, tok)
		}
		for dec.More() {
			fileKey, err := dec.Token()
			if err != nil {
				return err
			}
			f := ExploreFile{File: fileKey.(string)}
			if err := dec.Decode(&f.Prompt); err != nil {
				return fmt.Errorf("explore[%q][%q]: %w", src.Source, f.File, err)
			}
			src.Files = append(src.Files, f)
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
		out = append(out, src)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// MarshalJSON encodes the mapping back into a JSON object in its stored order.
func (m ExploreMap) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, src := range m {
		if i > 0 {
			b.WriteByte(',')
		}
		k, _ := json.Marshal(src.Source)
		b.Write(k)
		b.WriteString(":{")
		for j, f := range src.Files {
			if j > 0 {
				b.WriteByte(',')
			}
			fk, _ := json.Marshal(f.File)
			fv, _ := json.Marshal(f.Prompt)
			b.Write(fk)
			b.WriteByte(':')
			b.Write(fv)
		}
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Decision is the typed reply of the decision step.
type Decision struct {
	Explore         ExploreMap `json:"explore"`
	GiveFinalAnswer bool       `json:"give_final_answer"`
}

// DecisionKind records which parsing branch produced a decision.
type DecisionKind string

const (
	DecisionStructured DecisionKind = "structured"
	DecisionLenient    DecisionKind = "lenient"
	DecisionFailed     DecisionKind = "failed"
	// DecisionSkipped: no datasource registered, nothing was asked.
	DecisionSkipped DecisionKind = "skipped"
)

// DecisionResult is the outcome of the decision step. Err holds the last
// failure cause when Kind is DecisionFailed, and the structured failure
// that triggered the fallback when Kind is DecisionLenient.
type DecisionResult struct {
	Kind     DecisionKind
	Decision Decision
	Err      error
}

// ParseStructuredDecision validates raw against DecisionSchema and decodes it.
func ParseStructuredDecision(raw string) (Decision, error) {
	body := stripCodeFence(strings.TrimSpace(raw))

	result, err := decisionSchema.Validate(gojsonschema.NewStringLoader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Decision{}, &DecisionValidationError{Errors: msgs}
	}

	var d Decision
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	return d, nil
}

// ParseLenientDecision digs the first JSON object out of free text and reads
// explore and give_final_answer from it, defaulting whatever is missing.
func ParseLenientDecision(raw string) (Decision, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return Decision{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}

	var d Decision
	if rawExplore, ok := fields["explore"]; ok {
		if err := json.Unmarshal(rawExplore, &d.Explore); err != nil {
			return Decision{}, fmt.Errorf("decode explore: %w", err)
		}
	}
	if rawFinal, ok := fields["give_final_answer"]; ok {
		d.GiveFinalAnswer = lenientBool(rawFinal)
	}
	return d, nil
}

func lenientBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}
	return false
}

var errNoJSONObject = errors.New("no JSON object in reply")

// extractJSONObject returns the first complete JSON object found in s.
func extractJSONObject(s string) ([]byte, error) {
	s = stripCodeFence(strings.TrimSpace(s))
	for start := strings.IndexByte(s, '{'); start != -1; {
		var obj json.RawMessage
		dec := json.NewDecoder(strings.NewReader(s[start:]))
		if err := dec.Decode(&obj); err == nil {
			return obj, nil
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return nil, errNoJSONObject
}

// stripCodeFence removes a surrounding ```json ... ``` block.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
