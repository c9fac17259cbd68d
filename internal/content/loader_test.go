package content_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-tutor/internal/content"
)

func TestLoad_OrdersConceptsByNumericSuffix(t *testing.T) {
	dir := setupTestContent(t)

	catalog := content.Load(content.PathsIn(dir))

	var got []string
	for _, c := range catalog.Concepts() {
		got = append(got, c.ID)
	}
	want := []string{"intro", "c1", "c2", "c10"}
	if len(got) != len(want) {
		t.Fatalf("Concepts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Concepts()[%d] = %q, want %q (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestLoad_MergesPrerequisiteEdges(t *testing.T) {
	dir := setupTestContent(t)

	catalog := content.Load(content.PathsIn(dir))

	for _, c := range catalog.Concepts() {
		if c.ID != "c2" {
			continue
		}
		if len(c.Prerequisites) != 1 || c.Prerequisites[0] != "c1" {
			t.Errorf("c2 prerequisites = %v, want [c1]", c.Prerequisites)
		}
		return
	}
	t.Fatal("concept c2 not found")
}

func TestLoad_QuestionLookup(t *testing.T) {
	dir := setupTestContent(t)

	catalog := content.Load(content.PathsIn(dir))

	q, found := catalog.Question("q1")
	if !found {
		t.Fatal("Question(q1) not found")
	}
	if q.Answer != "4" {
		t.Errorf("Answer = %q, want 4", q.Answer)
	}

	// Numeric IDs and answers in the file are read as text.
	q, found = catalog.Question("7")
	if !found {
		t.Fatal("Question(7) not found")
	}
	if q.Answer != "12.5" {
		t.Errorf("Answer = %q, want 12.5", q.Answer)
	}

	if _, found := catalog.Question("missing"); found {
		t.Error("Question(missing) should not be found")
	}
}

func TestLoad_QuestionsForKeepsCatalogOrder(t *testing.T) {
	dir := setupTestContent(t)

	catalog := content.Load(content.PathsIn(dir))

	qs := catalog.QuestionsFor("c1")
	if len(qs) != 2 {
		t.Fatalf("QuestionsFor(c1) = %d questions, want 2", len(qs))
	}
	if qs[0].ID != "q1" || qs[1].ID != "q2" {
		t.Errorf("QuestionsFor(c1) order = [%s %s], want [q1 q2]", qs[0].ID, qs[1].ID)
	}
}

func TestLoad_ExamplesForConcept(t *testing.T) {
	dir := setupTestContent(t)

	catalog := content.Load(content.PathsIn(dir))

	exs := catalog.ExamplesFor("c2")
	if len(exs) != 2 {
		t.Fatalf("ExamplesFor(c2) = %d, want 2", len(exs))
	}
	if exs[0].ID != "l2" || exs[1].ID != "l3" {
		t.Errorf("ExamplesFor(c2) ids = [%s %s], want [l2 l3]", exs[0].ID, exs[1].ID)
	}
	if len(catalog.ExamplesFor("c10")) != 0 {
		t.Error("ExamplesFor(c10) should be empty")
	}
}

func TestLoad_MissingFilesYieldEmptyCatalog(t *testing.T) {
	dir := t.TempDir()

	catalog := content.Load(content.PathsIn(dir))

	if got := catalog.Concepts(); len(got) != 0 {
		t.Errorf("Concepts() = %v, want empty", got)
	}
	concepts, questions, examples := catalog.Counts()
	if concepts+questions+examples != 0 {
		t.Errorf("Counts() = %d/%d/%d, want all zero", concepts, questions, examples)
	}
}

func TestLoad_MalformedFileOnlyEmptiesThatCatalog(t *testing.T) {
	dir := setupTestContent(t)
	writeFile(t, filepath.Join(dir, content.QuestionsFile), `[{"id": "q1", "concept_id": `)

	catalog := content.Load(content.PathsIn(dir))

	concepts, questions, examples := catalog.Counts()
	if concepts != 4 {
		t.Errorf("concepts = %d, want 4", concepts)
	}
	if questions != 0 {
		t.Errorf("questions = %d, want 0 for malformed file", questions)
	}
	if examples != 3 {
		t.Errorf("examples = %d, want 3", examples)
	}
}

func TestLoad_SchemaViolationEmptiesCatalog(t *testing.T) {
	dir := setupTestContent(t)
	// Questions must be an array.
	writeFile(t, filepath.Join(dir, content.QuestionsFile), `{"q1": {"concept_id": "c1"}}`)

	catalog := content.Load(content.PathsIn(dir))

	if _, questions, _ := catalog.Counts(); questions != 0 {
		t.Errorf("questions = %d, want 0", questions)
	}
}

func TestLoad_SkipsOnlyInvalidEntries(t *testing.T) {
	dir := setupTestContent(t)
	writeFile(t, filepath.Join(dir, content.QuestionsFile), `[
  {"id": "q1", "concept_id": "c1", "difficulty": 1, "answer": "4"},
  {"id": "q2", "difficulty": 2, "answer": "5"},
  {"id": "q3", "concept_id": "c99", "difficulty": 3, "answer": "6"},
  {"id": "q4", "concept_id": "c1", "difficulty": "hard"}
]`)
	writeFile(t, filepath.Join(dir, content.ExamplesFile), `{
  "l1": {"concept_id": "c1", "title": "Counting"},
  "l2": {"title": "No concept"}
}`)

	catalog := content.Load(content.PathsIn(dir))

	tests := []struct {
		id    string
		found bool
	}{
		{"q1", true},
		{"q2", false}, // no concept_id
		{"q3", true},  // unknown concept is tolerated
		{"q4", false}, // difficulty is not a number
	}
	for _, tt := range tests {
		if _, found := catalog.Question(tt.id); found != tt.found {
			t.Errorf("Question(%s) found = %v, want %v", tt.id, found, tt.found)
		}
	}
	if _, _, examples := catalog.Counts(); examples != 1 {
		t.Errorf("examples = %d, want 1", examples)
	}

	if _, err := content.LoadStrict(content.PathsIn(dir)); err == nil {
		t.Error("LoadStrict() should reject a file with an invalid entry")
	}
}

func TestLoad_KeepsPassThroughFields(t *testing.T) {
	dir := setupTestContent(t)
	writeFile(t, filepath.Join(dir, content.QuestionsFile), `[
  {"id": "q1", "concept_id": "c1", "difficulty": 1, "answer": "4", "explanation": "count on from 2", "tags": ["add"]}
]`)
	writeFile(t, filepath.Join(dir, content.ExamplesFile), `{
  "l1": {"concept_id": "c1", "explanation": "add the numbers", "video_url": "http://v"}
}`)

	for _, strict := range []bool{false, true} {
		var catalog *content.Catalog
		if strict {
			var err error
			if catalog, err = content.LoadStrict(content.PathsIn(dir)); err != nil {
				t.Fatalf("LoadStrict() error = %v", err)
			}
		} else {
			catalog = content.Load(content.PathsIn(dir))
		}

		exs := catalog.ExamplesFor("c1")
		if len(exs) != 1 {
			t.Fatalf("ExamplesFor(c1) = %d examples, want 1", len(exs))
		}
		if got := exs[0].Fields.String("explanation"); got != "add the numbers" {
			t.Errorf("explanation = %q, want %q", got, "add the numbers")
		}
		data, err := json.Marshal(exs[0])
		if err != nil {
			t.Fatalf("Marshal(example) error = %v", err)
		}
		for _, want := range []string{`"id":"l1"`, `"concept_id":"c1"`, `"explanation":"add the numbers"`, `"video_url":"http://v"`} {
			if !strings.Contains(string(data), want) {
				t.Errorf("example JSON = %s, missing %s", data, want)
			}
		}

		q, _ := catalog.Question("q1")
		rec, err := q.Record()
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if string(rec["explanation"]) != `"count on from 2"` || string(rec["tags"]) != `["add"]` {
			t.Errorf("Record() = %v, want explanation and tags kept", rec)
		}
		if string(rec["answer"]) != `"4"` {
			t.Errorf("Record()[answer] = %s, want \"4\"", rec["answer"])
		}
	}
}

func TestLoadStrict_ReturnsLoadError(t *testing.T) {
	dir := t.TempDir()

	_, err := content.LoadStrict(content.PathsIn(dir))
	if err == nil {
		t.Fatal("LoadStrict() should fail for missing files")
	}
	var loadErr *content.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("LoadStrict() error = %T, want *content.LoadError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadStrict() error should wrap os.ErrNotExist, got %v", err)
	}
}

func TestLoad_YAMLCatalogs(t *testing.T) {
	dir := t.TempDir()
	paths := content.Paths{
		Concepts:  filepath.Join(dir, "knowledge.yaml"),
		Questions: filepath.Join(dir, "questions.yaml"),
		Examples:  filepath.Join(dir, "lessons.yml"),
	}
	writeFile(t, paths.Concepts, `
concepts:
  - id: c2
    name: Fractions
  - id: c1
    name: Decimals
`)
	writeFile(t, paths.Questions, `
- id: q1
  concept_id: c1
  difficulty: 2
  answer: 0.5
`)
	writeFile(t, paths.Examples, `
l1:
  concept_id: c1
  title: Halves
`)

	catalog, err := content.LoadStrict(paths)
	if err != nil {
		t.Fatalf("LoadStrict() error = %v", err)
	}
	ids := catalog.ConceptIDs()
	if len(ids) != 2 || ids[0] != "c1" {
		t.Errorf("ConceptIDs() = %v, want [c1 c2]", ids)
	}
	q, found := catalog.Question("q1")
	if !found || q.Answer != "0.5" {
		t.Errorf("Question(q1) = %+v, %v; want answer 0.5", q, found)
	}
	if exs := catalog.ExamplesFor("c1"); len(exs) != 1 || exs[0].Title != "Halves" {
		t.Errorf("ExamplesFor(c1) = %+v, want the Halves example", exs)
	}
}

func TestOrderKey(t *testing.T) {
	tests := []struct {
		id   string
		want int
	}{
		{"c1", 1},
		{"c10", 10},
		{"concept-007", 7},
		{"concept10", 10},
		{"c-3", 3},
		{"c", 0},
		{"", 0},
		{"1c", 0},
		{"c99999999999999999999999", 0},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := content.OrderKey(tt.id); got != tt.want {
				t.Errorf("OrderKey(%q) = %d, want %d", tt.id, got, tt.want)
			}
		})
	}
}

func TestWriteSample_RoundTripsThroughLoader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	written, err := content.WriteSample(dir, false)
	if err != nil {
		t.Fatalf("WriteSample() error = %v", err)
	}
	if len(written) != 3 {
		t.Errorf("WriteSample() wrote %d files, want 3", len(written))
	}

	catalog, err := content.LoadStrict(content.PathsIn(dir))
	if err != nil {
		t.Fatalf("LoadStrict() error = %v", err)
	}
	if ids := catalog.ConceptIDs(); len(ids) != 3 {
		t.Errorf("ConceptIDs() = %v, want 3 concepts", ids)
	}

	// A second run must not clobber existing files.
	written, err = content.WriteSample(dir, false)
	if err != nil {
		t.Fatalf("WriteSample() second run error = %v", err)
	}
	if len(written) != 0 {
		t.Errorf("WriteSample() second run wrote %v, want nothing", written)
	}
}

func setupTestContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, content.ConceptsFile), `{
  "concepts": [
    {"id": "c10", "name": "Ratios"},
    {"id": "c2", "name": "Fractions"},
    {"id": "intro", "name": "Welcome"},
    {"id": "c1", "name": "Whole numbers"},
    {"id": "c1", "name": "Duplicate"}
  ],
  "prerequisites": [
    {"concept_id": "c2", "requires": "c1"}
  ]
}`)

	writeFile(t, filepath.Join(dir, content.QuestionsFile), `[
  {"id": "q1", "concept_id": "c1", "difficulty": 1, "answer": "4", "text": "2 + 2?"},
  {"id": "q2", "concept_id": "c1", "difficulty": 2, "answer": "Paris"},
  {"id": 7, "concept_id": "c2", "difficulty": 3, "answer": 12.5}
]`)

	writeFile(t, filepath.Join(dir, content.ExamplesFile), `{
  "l3": {"concept_id": "c2", "title": "Equivalent fractions"},
  "l2": {"concept_id": "c2", "title": "Halves"},
  "l1": {"concept_id": "c1", "title": "Counting"}
}`)

	return dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
