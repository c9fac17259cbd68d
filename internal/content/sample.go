package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Default catalog file names inside a content directory.
const (
	ConceptsFile  = "knowledge.json"
	QuestionsFile = "question.json"
	ExamplesFile  = "lesson.json"
)

// PathsIn returns the default catalog paths inside dir.
func PathsIn(dir string) Paths {
	return Paths{
		Concepts:  filepath.Join(dir, ConceptsFile),
		Questions: filepath.Join(dir, QuestionsFile),
		Examples:  filepath.Join(dir, ExamplesFile),
	}
}

// WriteSample writes a small arithmetic catalog into dir. Existing files are
// left alone unless overwrite is set. It returns the paths it wrote.
func WriteSample(dir string, overwrite bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating content dir: %w", err)
	}

	p := PathsIn(dir)
	docs := []struct {
		path string
		doc  any
	}{
		{p.Concepts, sampleKnowledge()},
		{p.Questions, sampleQuestions()},
		{p.Examples, sampleExamples()},
	}

	var written []string
	for _, d := range docs {
		if !overwrite {
			if _, err := os.Stat(d.path); err == nil {
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return written, fmt.Errorf("checking %s: %w", d.path, err)
			}
		}
		data, err := json.MarshalIndent(d.doc, "", "  ")
		if err != nil {
			return written, fmt.Errorf("encoding %s: %w", d.path, err)
		}
		if err := os.WriteFile(d.path, append(data, '\n'), 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", d.path, err)
		}
		written = append(written, d.path)
	}
	return written, nil
}

func sampleKnowledge() knowledgeFile {
	return knowledgeFile{
		Concepts: []Concept{
			{ID: "c1", Name: "Addition"},
			{ID: "c2", Name: "Subtraction"},
			{ID: "c3", Name: "Multiplication"},
		},
		Prerequisites: []prerequisiteEdge{
			{ConceptID: "c2", Requires: "c1"},
			{ConceptID: "c3", Requires: "c1"},
		},
	}
}

func sampleQuestions() []Question {
	return []Question{
		{ID: "q1", ConceptID: "c1", Difficulty: 1, Text: "What is 2 + 2?", Answer: "4"},
		{ID: "q2", ConceptID: "c1", Difficulty: 3, Text: "What is 17 + 25?", Answer: "42"},
		{ID: "q3", ConceptID: "c2", Difficulty: 1, Text: "What is 9 - 4?", Answer: "5"},
		{ID: "q4", ConceptID: "c2", Difficulty: 2, Text: "What is 50 - 18?", Answer: "32"},
		{ID: "q5", ConceptID: "c3", Difficulty: 2, Text: "What is 6 x 7?", Answer: "42"},
		{ID: "q6", ConceptID: "c3", Difficulty: 1, Text: "Is 3 x 0 zero? (yes/no)", Answer: "yes", Choices: []string{"yes", "no"}},
	}
}

func sampleExamples() map[string]Example {
	return map[string]Example{
		"l1": {ConceptID: "c1", Title: "Counting on", Content: "Start at the larger number and count up by the smaller one.", Steps: []string{"17 + 25", "25 + 10 = 35", "35 + 7 = 42"}},
		"l2": {ConceptID: "c2", Title: "Counting back", Content: "Subtract the tens first, then the ones.", Steps: []string{"50 - 18", "50 - 10 = 40", "40 - 8 = 32"}},
		"l3": {ConceptID: "c3", Title: "Repeated addition", Content: "6 x 7 is seven groups of six.", Steps: []string{"6 + 6 + 6 + 6 + 6 + 6 + 6", "= 42"}},
	}
}
