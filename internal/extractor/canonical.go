package extractor

import "strings"

// CategoryCanonicalizer maps loosely spelled category names onto the taxonomy's spelling.
type CategoryCanonicalizer struct {
	names map[string]string
}

// NewCategoryCanonicalizer indexes the given category names.
func NewCategoryCanonicalizer(categories []string) *CategoryCanonicalizer {
	c := &CategoryCanonicalizer{names: make(map[string]string, len(categories))}
	for _, name := range categories {
		if key := normalizeCategory(name); key != "" {
			c.names[key] = strings.TrimSpace(name)
		}
	}
	return c
}

// Canonical returns the taxonomy spelling of category and whether it is known.
// Unknown categories are returned trimmed.
func (c *CategoryCanonicalizer) Canonical(category string) (string, bool) {
	if name, ok := c.names[normalizeCategory(category)]; ok {
		return name, true
	}
	return strings.TrimSpace(category), false
}

// normalizeCategory upper-cases and collapses inner whitespace for comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
