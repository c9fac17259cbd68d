package content

import (
	"encoding/json"
	"strconv"
)

// Concept is one unit of curriculum with a teaching order derived from its ID.
type Concept struct {
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	Fields        Fields   `json:"-"`
}

// Question is a gradable item belonging to a concept.
type Question struct {
	ID         Text     `json:"id"`
	ConceptID  string   `json:"concept_id"`
	Difficulty float64  `json:"difficulty"`
	Answer     Text     `json:"answer"`
	Text       string   `json:"text,omitempty"`
	Choices    []string `json:"choices,omitempty"`
	Hint       string   `json:"hint,omitempty"`
	Fields     Fields   `json:"-"`
}

// Example is a worked example (lesson) shown when a concept runs out of
// questions. Only concept_id is required; everything else is payload.
type Example struct {
	ID        string   `json:"id,omitempty"`
	ConceptID string   `json:"concept_id"`
	Title     string   `json:"title,omitempty"`
	Content   string   `json:"content,omitempty"`
	Steps     []string `json:"steps,omitempty"`
	Fields    Fields   `json:"-"`
}

// Text is a string field that content authors may write as a JSON string or number.
type Text string

// UnmarshalJSON accepts strings, numbers and booleans.
func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Text(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*t = Text(strconv.FormatBool(b))
	return nil
}

func (t Text) String() string { return string(t) }

// knowledgeFile is the on-disk shape of the concepts catalog.
type knowledgeFile struct {
	Concepts      []Concept          `json:"concepts"`
	Prerequisites []prerequisiteEdge `json:"prerequisites"`
}

type prerequisiteEdge struct {
	ConceptID string `json:"concept_id"`
	Requires  string `json:"requires"`
}

// OrderKey extracts the trailing decimal digits of a concept ID ("c10" -> 10).
// IDs without a numeric suffix, or with one that overflows, order as 0.
func OrderKey(id string) int {
	end := len(id)
	start := end
	for start > 0 && id[start-1] >= '0' && id[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0
	}
	n, err := strconv.Atoi(id[start:end])
	if err != nil {
		return 0
	}
	return n
}
