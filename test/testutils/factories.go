// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/fooder/fooder/internal/domain/recipe"
)

// RecordFactory creates recipe records the way the recipe backend returns them
type RecordFactory struct {
	faker  *gofakeit.Faker
	nextID int64
}

// NewRecordFactory creates a new record factory with seeded faker
func NewRecordFactory(seed int64) *RecordFactory {
	return &RecordFactory{
		faker:  gofakeit.New(seed),
		nextID: 1000,
	}
}

// Document returns a backend-shaped JSON document for a recipe with instructions.
// Extra keys model fields the service passes through untouched.
func (f *RecordFactory) Document(title string) map[string]interface{} {
	f.nextID++
	if title == "" {
		title = f.faker.Dessert()
	}
	return map[string]interface{}{
		"id":             f.nextID,
		"title":          title,
		"readyInMinutes": f.faker.Number(10, 120),
		"sourceUrl":      f.faker.URL(),
		"servings":       f.faker.Number(1, 8),
		"extendedIngredients": []map[string]interface{}{
			{"id": f.faker.Number(1, 99999), "name": f.faker.Vegetable(), "amount": f.faker.Float64Range(0.5, 4), "unit": "cup"},
			{"id": f.faker.Number(1, 99999), "name": f.faker.Fruit(), "amount": f.faker.Float64Range(0.5, 4), "unit": "piece"},
		},
		"instructions": f.faker.Sentence(12),
		"analyzedInstructions": []map[string]interface{}{
			{"name": "", "steps": []map[string]interface{}{
				{"number": 1, "step": f.faker.Sentence(8)},
				{"number": 2, "step": f.faker.Sentence(8)},
			}},
		},
	}
}

// Record returns a decoded record with instructions; Raw() holds the full document
func (f *RecordFactory) Record(title string) recipe.Record {
	return decode(f.Document(title))
}

// BareRecord returns a decoded record without any instructions
func (f *RecordFactory) BareRecord(title string) recipe.Record {
	doc := f.Document(title)
	delete(doc, "instructions")
	delete(doc, "analyzedInstructions")
	return decode(doc)
}

// Records returns n records with instructions
func (f *RecordFactory) Records(n int) []recipe.Record {
	records := make([]recipe.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, f.Record(""))
	}
	return records
}

func decode(doc map[string]interface{}) recipe.Record {
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	var r recipe.Record
	if err := json.Unmarshal(data, &r); err != nil {
		panic(err)
	}
	return r
}

// ImageBytes returns deterministic bytes standing in for an encoded photo
func ImageBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	for i := 4; i < size; i++ {
		data[i] = byte(i % 251)
	}
	return data
}

// DataURI wraps data as a base64 JPEG data URI
func DataURI(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

// WriteImage writes a small image file into a temp dir and returns its path
func WriteImage(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, ImageBytes(256), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}
