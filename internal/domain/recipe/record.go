// Package recipe describes recipe records returned by the recipe backend.
// Records are passed through to callers; only the fields the router reads are typed.
package recipe

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Ingredient is one entry of a record's ingredient list
type Ingredient struct {
	ID       int64   `json:"id,omitempty"`
	Name     string  `json:"name"`
	Original string  `json:"original,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Unit     string  `json:"unit,omitempty"`
}

// Step is a numbered instruction
type Step struct {
	Number int    `json:"number"`
	Step   string `json:"step"`
}

// InstructionSet is a named group of steps
type InstructionSet struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Record is an opaque recipe document from the recipe backend
type Record struct {
	ID                   int64            `json:"id"`
	Title                string           `json:"title"`
	ReadyInMinutes       int              `json:"readyInMinutes,omitempty"`
	SourceURL            string           `json:"sourceUrl,omitempty"`
	Image                string           `json:"image,omitempty"`
	ExtendedIngredients  []Ingredient     `json:"extendedIngredients,omitempty"`
	Instructions         string           `json:"instructions,omitempty"`
	AnalyzedInstructions []InstructionSet `json:"analyzedInstructions,omitempty"`

	raw json.RawMessage
}

type recordFields Record

// UnmarshalJSON decodes the typed fields and keeps the original document
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = Record(fields)
	r.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

// MarshalJSON re-emits the original document when the record came from the backend
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(recordFields(r))
}

// HasInstructions reports whether the record carries cooking instructions
func (r Record) HasInstructions() bool {
	if strings.TrimSpace(r.Instructions) != "" {
		return true
	}
	for _, set := range r.AnalyzedInstructions {
		if len(set.Steps) > 0 {
			return true
		}
	}
	return false
}

// Raw returns the original document, or nil for records built in code
func (r Record) Raw() json.RawMessage {
	return r.raw
}
