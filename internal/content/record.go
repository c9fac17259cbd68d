package content

import (
	"encoding/json"
	"fmt"
)

// Fields holds the attributes of a catalog entry the tutor does not interpret
// (explanations, media links, authoring notes). They are passed through
// unchanged so every payload carries the full authored record.
type Fields map[string]json.RawMessage

// String returns a field decoded as a string, or "" when it is missing or not
// a string.
func (f Fields) String(key string) string {
	var s string
	if raw, ok := f[key]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

var (
	conceptKeys  = []string{"id", "name", "prerequisites"}
	questionKeys = []string{"id", "concept_id", "difficulty", "answer", "text", "choices", "hint"}
	exampleKeys  = []string{"id", "concept_id", "title", "content", "steps"}
)

// UnmarshalJSON decodes the known fields and keeps the rest in Fields.
func (c *Concept) UnmarshalJSON(data []byte) error {
	type plain Concept
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraFields(data, conceptKeys)
	if err != nil {
		return err
	}
	p.Fields = extra
	*c = Concept(p)
	return nil
}

// MarshalJSON writes the known fields merged with Fields.
func (c Concept) MarshalJSON() ([]byte, error) {
	type plain Concept
	return marshalRecord(plain(c), c.Fields)
}

// UnmarshalJSON decodes the known fields and keeps the rest in Fields.
func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraFields(data, questionKeys)
	if err != nil {
		return err
	}
	p.Fields = extra
	*q = Question(p)
	return nil
}

// MarshalJSON writes the known fields merged with Fields.
func (q Question) MarshalJSON() ([]byte, error) {
	type plain Question
	return marshalRecord(plain(q), q.Fields)
}

// UnmarshalJSON decodes the known fields and keeps the rest in Fields.
func (e *Example) UnmarshalJSON(data []byte) error {
	type plain Example
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraFields(data, exampleKeys)
	if err != nil {
		return err
	}
	p.Fields = extra
	*e = Example(p)
	return nil
}

// MarshalJSON writes the known fields merged with Fields.
func (e Example) MarshalJSON() ([]byte, error) {
	type plain Example
	return marshalRecord(plain(e), e.Fields)
}

// Record returns the question as a flat JSON object, including its answer
// and every pass-through field.
func (q Question) Record() (map[string]json.RawMessage, error) {
	data, err := q.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var rec map[string]json.RawMessage
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding question record: %w", err)
	}
	return rec, nil
}

func extraFields(data []byte, known []string) (Fields, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return Fields(all), nil
}

// marshalRecord encodes v and adds the extra fields. Known fields win over
// extras with the same name.
func marshalRecord(v any, extra Fields) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var rec map[string]json.RawMessage
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := rec[k]; !ok {
			rec[k] = raw
		}
	}
	return json.Marshal(rec)
}
