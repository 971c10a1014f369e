// Package food holds the curated food vocabulary shared by detection and recipe routing
package food

import (
	"errors"
	"fmt"
	"sort"
)

// Label names a recognized food class, e.g. "banana" or "hot dog"
type Label = string

// Category groups vocabulary labels for documentation and metrics
type Category string

const (
	CategoryFruit     Category = "fruit"
	CategoryVegetable Category = "vegetable"
	CategoryPrepared  Category = "prepared"
	CategoryStaple    Category = "staple"
	CategoryBeverage  Category = "beverage"
	CategoryProtein   Category = "protein"
	CategoryCondiment Category = "condiment"
	CategoryGeneric   Category = "generic"
)

// ErrPreparedNotInVocabulary is returned when a prepared label is missing from the full set
var ErrPreparedNotInVocabulary = errors.New("prepared food label is not part of the vocabulary")

// Vocabulary is the closed, immutable set of food labels.
// A Vocabulary is safe for concurrent use; nothing mutates it after construction.
type Vocabulary struct {
	categories map[Label]Category
}

// NewVocabulary builds a vocabulary from labels grouped by category.
// Labels under CategoryPrepared form the prepared-food subset.
func NewVocabulary(groups map[Category][]Label) (*Vocabulary, error) {
	categories := make(map[Label]Category)
	for category, labels := range groups {
		for _, label := range labels {
			if label == "" {
				return nil, fmt.Errorf("empty label in category %q", category)
			}
			if existing, ok := categories[label]; ok && existing != category {
				return nil, fmt.Errorf("label %q listed under both %q and %q", label, existing, category)
			}
			categories[label] = category
		}
	}
	return &Vocabulary{categories: categories}, nil
}

// NewVocabularyWithPrepared builds a vocabulary from a flat label list and a prepared subset.
// Every prepared label must appear in labels.
func NewVocabularyWithPrepared(labels []Label, prepared []Label) (*Vocabulary, error) {
	categories := make(map[Label]Category, len(labels))
	for _, label := range labels {
		categories[label] = CategoryGeneric
	}
	for _, label := range prepared {
		if _, ok := categories[label]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrPreparedNotInVocabulary, label)
		}
		categories[label] = CategoryPrepared
	}
	return &Vocabulary{categories: categories}, nil
}

// DefaultVocabulary returns a fresh copy of the built-in curated vocabulary
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(map[Category][]Label{
		CategoryFruit:     {"banana", "apple", "orange", "pear", "grapefruit", "lemon", "strawberry", "grape"},
		CategoryVegetable: {"broccoli", "carrot", "cucumber", "lettuce", "tomato", "potato", "corn"},
		CategoryPrepared: {
			"sandwich", "hot dog", "pizza", "burger", "sushi", "pasta",
			"donut", "cake", "ice cream", "cookie", "pastry",
		},
		CategoryStaple:    {"rice", "bread"},
		CategoryBeverage:  {"coffee", "wine", "juice"},
		CategoryProtein:   {"chicken", "beef", "fish", "eggs"},
		CategoryCondiment: {"ketchup", "mustard", "sauce"},
		CategoryGeneric:   {"food", "fruit", "vegetable"},
	})
	if err != nil {
		panic(err)
	}
	return v
}

// Contains reports whether label is part of the vocabulary
func (v *Vocabulary) Contains(label Label) bool {
	_, ok := v.categories[label]
	return ok
}

// IsPrepared reports whether label is a prepared (multi-ingredient) dish
func (v *Vocabulary) IsPrepared(label Label) bool {
	return v.categories[label] == CategoryPrepared
}

// CategoryOf returns the category of label and whether it is known
func (v *Vocabulary) CategoryOf(label Label) (Category, bool) {
	c, ok := v.categories[label]
	return c, ok
}

// Labels returns all labels in sorted order
func (v *Vocabulary) Labels() []Label {
	labels := make([]Label, 0, len(v.categories))
	for label := range v.categories {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Prepared returns the prepared-food subset in sorted order
func (v *Vocabulary) Prepared() []Label {
	var labels []Label
	for label, category := range v.categories {
		if category == CategoryPrepared {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

// Len returns the vocabulary size
func (v *Vocabulary) Len() int {
	return len(v.categories)
}

// Partition splits items into prepared dishes and everything else.
// Relative order is kept within each bucket and duplicates are kept.
func (v *Vocabulary) Partition(items []Label) (prepared, ingredients []Label) {
	for _, item := range items {
		if v.IsPrepared(item) {
			prepared = append(prepared, item)
		} else {
			ingredients = append(ingredients, item)
		}
	}
	return prepared, ingredients
}
