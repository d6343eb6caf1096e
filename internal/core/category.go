package core

import (
	"slices"
	"strings"
)

type Category string

const (
	Food           Category = "Food"
	Transportation Category = "Transportation"
	Entertainment  Category = "Entertainment"
	Shopping       Category = "Shopping"
	Bills          Category = "Bills"
	Other          Category = "Other"
)

// CategoryRegistry is the set of categories an expense may be written with.
// Order is preserved for menus and chart series.
type CategoryRegistry struct {
	ordered []Category
	byKey   map[string]Category
}

// DefaultCategories is the registry checked on every write.
var DefaultCategories = NewCategoryRegistry(Food, Transportation, Entertainment, Shopping, Bills, Other)

func NewCategoryRegistry(categories ...Category) *CategoryRegistry {
	r := &CategoryRegistry{byKey: make(map[string]Category, len(categories))}
	for _, c := range categories {
		key := strings.ToLower(string(c))
		if _, dup := r.byKey[key]; dup || key == "" {
			continue
		}
		r.byKey[key] = c
		r.ordered = append(r.ordered, c)
	}
	return r
}

func (r *CategoryRegistry) Contains(c Category) bool {
	got, ok := r.byKey[strings.ToLower(string(c))]
	return ok && got == c
}

// Parse resolves a name case-insensitively to its canonical category.
func (r *CategoryRegistry) Parse(s string) (Category, error) {
	if c, ok := r.byKey[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", ErrInvalidCategory
}

func (r *CategoryRegistry) All() []Category {
	return slices.Clone(r.ordered)
}

func ParseCategory(s string) (Category, error) {
	return DefaultCategories.Parse(s)
}

func (c Category) String() string { return string(c) }
