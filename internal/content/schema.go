package content

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Entry schemas validate a single catalog entry. The fail-open loader applies
// them one entry at a time; the file schemas below are built from them for
// strict loading.
const (
	conceptSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "prerequisites": {"type": "array", "items": {"type": "string"}}
  }
}`

	prerequisiteSchema = `{
  "type": "object",
  "required": ["concept_id", "requires"],
  "properties": {
    "concept_id": {"type": "string"},
    "requires": {"type": "string"}
  }
}`

	questionSchema = `{
  "type": "object",
  "required": ["id", "concept_id"],
  "properties": {
    "id": {"type": ["string", "number"]},
    "concept_id": {"type": "string"},
    "difficulty": {"type": "number"},
    "answer": {"type": ["string", "number", "boolean"]},
    "choices": {"type": "array", "items": {"type": "string"}}
  }
}`

	exampleSchema = `{
  "type": "object",
  "required": ["concept_id"],
  "properties": {
    "concept_id": {"type": "string"},
    "steps": {"type": "array", "items": {"type": "string"}}
  }
}`
)

const (
	knowledgeSchema = `{
  "type": "object",
  "properties": {
    "concepts": {"type": "array", "items": ` + conceptSchema + `},
    "prerequisites": {"type": "array", "items": ` + prerequisiteSchema + `}
  }
}`

	questionsSchema = `{"type": "array", "items": ` + questionSchema + `}`

	examplesSchema = `{"type": "object", "additionalProperties": ` + exampleSchema + `}`
)

var (
	knowledgeValidator = mustSchema(knowledgeSchema)
	questionsValidator = mustSchema(questionsSchema)
	examplesValidator  = mustSchema(examplesSchema)

	conceptValidator      = mustSchema(conceptSchema)
	prerequisiteValidator = mustSchema(prerequisiteSchema)
	questionValidator     = mustSchema(questionSchema)
	exampleValidator      = mustSchema(exampleSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("content: invalid built-in schema: %v", err))
	}
	return s
}

// validate checks a JSON document against a catalog schema and joins all
// violations into a single error.
func validate(schema *gojsonschema.Schema, doc []byte) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema violation: %s", strings.Join(msgs, "; "))
}
