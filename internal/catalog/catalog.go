// Package catalog indexes the filter definitions available to a request and
// resolves free-text filter references against them.
package catalog

import (
	"strings"

	"filter-agent/internal/matcher"
	"filter-agent/internal/models"
)

// Catalog is an immutable lookup index over one request's filter
// definitions. Both machine names and human-readable labels are indexed,
// case-insensitively with surrounding whitespace ignored.
type Catalog struct {
	filters  []models.FilterDefinition
	byName   map[string]int
	byLabel  map[string]int
	resolver *matcher.Matcher
}

// New builds the index. When names or labels collide after normalization the
// first definition wins, matching the order the caller supplied.
func New(filters []models.FilterDefinition, resolver *matcher.Matcher) *Catalog {
	c := &Catalog{
		filters:  filters,
		byName:   make(map[string]int, len(filters)),
		byLabel:  make(map[string]int, len(filters)),
		resolver: resolver,
	}
	for i, f := range filters {
		if key := normalize(f.Name); key != "" {
			if _, exists := c.byName[key]; !exists {
				c.byName[key] = i
			}
		}
		if key := normalize(f.Label); key != "" {
			if _, exists := c.byLabel[key]; !exists {
				c.byLabel[key] = i
			}
		}
	}
	return c
}

// Len reports how many definitions the catalog holds.
func (c *Catalog) Len() int {
	return len(c.filters)
}

// Filters returns the indexed definitions in their original order.
func (c *Catalog) Filters() []models.FilterDefinition {
	return c.filters
}

// Resolve maps a free-text filter reference to a definition. Name matches
// take precedence over label matches; when neither matches exactly a
// substring pass over names and labels picks the first definition that
// contains, or is contained by, the reference.
func (c *Catalog) Resolve(reference string) (models.FilterDefinition, bool) {
	key := normalize(reference)
	if key == "" {
		return models.FilterDefinition{}, false
	}

	if i, ok := c.byName[key]; ok {
		return c.filters[i], true
	}
	if i, ok := c.byLabel[key]; ok {
		return c.filters[i], true
	}

	for i, f := range c.filters {
		if contains(normalize(f.Name), key) || contains(normalize(f.Label), key) {
			return c.filters[i], true
		}
	}

	return models.FilterDefinition{}, false
}

// Suggestions ranks catalog labels by similarity to an unresolved
// reference, for "did you mean" style error messages.
func (c *Catalog) Suggestions(reference string) []string {
	key := normalize(reference)
	if key == "" || c.resolver == nil {
		return nil
	}

	labels := make([]string, 0, len(c.filters))
	for _, f := range c.filters {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		labels = append(labels, label)
	}

	result := c.resolver.Match(key, labels)
	switch result.Kind {
	case matcher.KindExact:
		return []string{result.Value}
	case matcher.KindFuzzy:
		out := make([]string, 0, len(result.Candidates))
		for _, cand := range result.Candidates {
			out = append(out, cand.Value)
		}
		return out
	default:
		return nil
	}
}

func contains(indexed, key string) bool {
	if indexed == "" {
		return false
	}
	return strings.Contains(indexed, key) || strings.Contains(key, indexed)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
