// Package content loads the immutable concept, question and example catalogs
// the tutor teaches from.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Paths locates the three catalog files.
type Paths struct {
	Concepts  string
	Questions string
	Examples  string
}

// LoadError reports a catalog file that could not be read, parsed or validated.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Catalog is the read-only content store. It is safe to share across
// goroutines once built.
type Catalog struct {
	concepts          []Concept
	questions         []Question
	questionIndex     map[string]int
	examples          map[string]Example
	examplesByConcept map[string][]Example
}

// NewCatalog builds a catalog from already-decoded content. Concepts are put
// into taught order; duplicate concept and question IDs keep the first entry.
func NewCatalog(concepts []Concept, questions []Question, examples map[string]Example) *Catalog {
	c := &Catalog{
		questionIndex:     make(map[string]int, len(questions)),
		examples:          make(map[string]Example, len(examples)),
		examplesByConcept: make(map[string][]Example),
	}

	seen := make(map[string]bool, len(concepts))
	for _, concept := range concepts {
		if concept.ID != "" && seen[concept.ID] {
			slog.Warn("duplicate concept id, keeping first", "concept_id", concept.ID)
			continue
		}
		seen[concept.ID] = true
		c.concepts = append(c.concepts, concept)
	}
	sort.SliceStable(c.concepts, func(i, j int) bool {
		return OrderKey(c.concepts[i].ID) < OrderKey(c.concepts[j].ID)
	})

	for _, q := range questions {
		id := q.ID.String()
		if _, dup := c.questionIndex[id]; dup {
			slog.Warn("duplicate question id, keeping first", "question_id", id)
			continue
		}
		c.questionIndex[id] = len(c.questions)
		c.questions = append(c.questions, q)
	}

	ids := make([]string, 0, len(examples))
	for id := range examples {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ex := examples[id]
		ex.ID = id
		c.examples[id] = ex
		c.examplesByConcept[ex.ConceptID] = append(c.examplesByConcept[ex.ConceptID], ex)
	}

	return c
}

// Load reads all three catalogs. A file that is missing or unreadable is
// logged and treated as empty, and an invalid entry is logged and skipped, so
// the tutor can still run against partial content.
func Load(p Paths) *Catalog {
	concepts, err := loadConcepts(p.Concepts, false)
	if err != nil {
		slog.Warn("concept catalog unavailable, using empty catalog", "path", p.Concepts, "error", err)
	}
	questions, err := loadQuestions(p.Questions, false)
	if err != nil {
		slog.Warn("question catalog unavailable, using empty catalog", "path", p.Questions, "error", err)
	}
	examples, err := loadExamples(p.Examples, false)
	if err != nil {
		slog.Warn("example catalog unavailable, using empty catalog", "path", p.Examples, "error", err)
	}

	c := NewCatalog(concepts, questions, examples)
	slog.Info("content loaded",
		"concepts", len(c.concepts),
		"questions", len(c.questions),
		"examples", len(c.examples),
	)
	return c
}

// LoadStrict is like Load but fails on the first file that cannot be loaded
// or holds an invalid entry.
func LoadStrict(p Paths) (*Catalog, error) {
	concepts, err := loadConcepts(p.Concepts, true)
	if err != nil {
		return nil, err
	}
	questions, err := loadQuestions(p.Questions, true)
	if err != nil {
		return nil, err
	}
	examples, err := loadExamples(p.Examples, true)
	if err != nil {
		return nil, err
	}
	return NewCatalog(concepts, questions, examples), nil
}

// Concepts returns the concepts in taught order.
func (c *Catalog) Concepts() []Concept {
	out := make([]Concept, len(c.concepts))
	copy(out, c.concepts)
	return out
}

// ConceptIDs returns the non-empty concept IDs in taught order.
func (c *Catalog) ConceptIDs() []string {
	ids := make([]string, 0, len(c.concepts))
	for _, concept := range c.concepts {
		if concept.ID != "" {
			ids = append(ids, concept.ID)
		}
	}
	return ids
}

// Question returns a question by ID.
func (c *Catalog) Question(id string) (Question, bool) {
	i, ok := c.questionIndex[id]
	if !ok {
		return Question{}, false
	}
	return c.questions[i], true
}

// QuestionsFor returns the questions of a concept in catalog order.
func (c *Catalog) QuestionsFor(conceptID string) []Question {
	var out []Question
	for _, q := range c.questions {
		if q.ConceptID == conceptID {
			out = append(out, q)
		}
	}
	return out
}

// ExamplesFor returns the examples of a concept ordered by example ID.
func (c *Catalog) ExamplesFor(conceptID string) []Example {
	return append([]Example(nil), c.examplesByConcept[conceptID]...)
}

// Counts reports catalog sizes.
func (c *Catalog) Counts() (concepts, questions, examples int) {
	return len(c.concepts), len(c.questions), len(c.examples)
}

func loadConcepts(path string, strict bool) ([]Concept, error) {
	var kf knowledgeFile
	if strict {
		if err := readDocument(path, knowledgeValidator, &kf); err != nil {
			return nil, err
		}
		return mergePrerequisites(kf.Concepts, kf.Prerequisites), nil
	}

	data, err := readJSON(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Concepts      []json.RawMessage `json:"concepts"`
		Prerequisites []json.RawMessage `json:"prerequisites"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("decoding json: %w", err)}
	}
	for i, raw := range doc.Concepts {
		var c Concept
		if err := decodeEntry(conceptValidator, raw, &c); err != nil {
			slog.Warn("skipping invalid concept", "path", path, "index", i, "error", err)
			continue
		}
		kf.Concepts = append(kf.Concepts, c)
	}
	for i, raw := range doc.Prerequisites {
		var edge prerequisiteEdge
		if err := decodeEntry(prerequisiteValidator, raw, &edge); err != nil {
			slog.Warn("skipping invalid prerequisite", "path", path, "index", i, "error", err)
			continue
		}
		kf.Prerequisites = append(kf.Prerequisites, edge)
	}
	return mergePrerequisites(kf.Concepts, kf.Prerequisites), nil
}

// mergePrerequisites folds the top-level prerequisite edges into the concepts
// they belong to.
func mergePrerequisites(concepts []Concept, edges []prerequisiteEdge) []Concept {
	byID := make(map[string]int, len(concepts))
	for i, concept := range concepts {
		if _, ok := byID[concept.ID]; !ok {
			byID[concept.ID] = i
		}
	}
	for _, edge := range edges {
		i, ok := byID[edge.ConceptID]
		if !ok {
			slog.Warn("prerequisite references unknown concept", "concept_id", edge.ConceptID, "requires", edge.Requires)
			continue
		}
		if !contains(concepts[i].Prerequisites, edge.Requires) {
			concepts[i].Prerequisites = append(concepts[i].Prerequisites, edge.Requires)
		}
	}
	return concepts
}

func loadQuestions(path string, strict bool) ([]Question, error) {
	var qs []Question
	if strict {
		if err := readDocument(path, questionsValidator, &qs); err != nil {
			return nil, err
		}
		return qs, nil
	}

	data, err := readJSON(path)
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("questions must be a list: %w", err)}
	}
	for i, raw := range raws {
		var q Question
		if err := decodeEntry(questionValidator, raw, &q); err != nil {
			slog.Warn("skipping invalid question", "path", path, "index", i, "error", err)
			continue
		}
		qs = append(qs, q)
	}
	return qs, nil
}

func loadExamples(path string, strict bool) (map[string]Example, error) {
	exs := map[string]Example{}
	if strict {
		if err := readDocument(path, examplesValidator, &exs); err != nil {
			return nil, err
		}
		return exs, nil
	}

	data, err := readJSON(path)
	if err != nil {
		return nil, err
	}
	var raws map[string]json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("examples must be an object: %w", err)}
	}
	for id, raw := range raws {
		var ex Example
		if err := decodeEntry(exampleValidator, raw, &ex); err != nil {
			slog.Warn("skipping invalid example", "path", path, "example_id", id, "error", err)
			continue
		}
		exs[id] = ex
	}
	return exs, nil
}

// readJSON reads a JSON or YAML file and returns its content as JSON. Every
// failure is returned as a *LoadError.
func readJSON(path string) ([]byte, error) {
	if path == "" {
		return nil, &LoadError{Path: path, Err: errors.New("no path configured")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("parsing yaml: %w", err)}
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("converting yaml: %w", err)}
		}
	}
	return data, nil
}

// readDocument reads a file, validates the whole document and decodes it into v.
func readDocument(path string, schema *gojsonschema.Schema, v any) error {
	data, err := readJSON(path)
	if err != nil {
		return err
	}
	if err := validate(schema, data); err != nil {
		return &LoadError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &LoadError{Path: path, Err: fmt.Errorf("decoding json: %w", err)}
	}
	return nil
}

// decodeEntry validates one catalog entry and decodes it into v.
func decodeEntry(schema *gojsonschema.Schema, raw json.RawMessage, v any) error {
	if err := validate(schema, raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
