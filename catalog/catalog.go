// Package catalog loads the fee schedule (aranceles) and answers code lookups
// and label searches against it.
package catalog

import (
	"strings"
	"unicode"

	"github.com/tabancura/frontdesk/entities"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Catalog is an immutable, indexed fee schedule. The zero value and a nil
// *Catalog both behave as an empty catalog.
type Catalog struct {
	entries   []entities.CatalogEntry
	byCode    map[string]int
	byDisplay map[string]int
	folded    []string // normalized DisplayLabel, same index as entries
}

// New indexes entries. When two entries share a code or a display label, the
// first one wins lookups; both remain searchable.
func New(entries []entities.CatalogEntry) *Catalog {
	c := &Catalog{
		entries:   entries,
		byCode:    make(map[string]int, len(entries)),
		byDisplay: make(map[string]int, len(entries)),
		folded:    make([]string, len(entries)),
	}
	for i, e := range entries {
		if _, exists := c.byCode[e.Code]; !exists {
			c.byCode[e.Code] = i
		}
		if _, exists := c.byDisplay[e.DisplayLabel]; !exists {
			c.byDisplay[e.DisplayLabel] = i
		}
		c.folded[i] = fold(e.DisplayLabel)
	}
	return c
}

// Empty returns a catalog with no entries.
func Empty() *Catalog {
	return New(nil)
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns the entries in source order. Callers must not modify them.
func (c *Catalog) Entries() []entities.CatalogEntry {
	if c == nil {
		return nil
	}
	return c.entries
}

// Lookup finds an entry by code after trimming.
func (c *Catalog) Lookup(code string) (entities.CatalogEntry, bool) {
	if c == nil {
		return entities.CatalogEntry{}, false
	}
	i, ok := c.byCode[strings.TrimSpace(code)]
	if !ok {
		return entities.CatalogEntry{}, false
	}
	return c.entries[i], true
}

// ByDisplayLabel resolves a label produced by the add-item picker.
func (c *Catalog) ByDisplayLabel(label string) (entities.CatalogEntry, bool) {
	if c == nil {
		return entities.CatalogEntry{}, false
	}
	i, ok := c.byDisplay[label]
	if !ok {
		return entities.CatalogEntry{}, false
	}
	return c.entries[i], true
}

// Search returns entries whose display label contains query, ignoring case and
// accents. An empty query returns every entry.
func (c *Catalog) Search(query string) []entities.CatalogEntry {
	if c == nil {
		return nil
	}
	q := fold(strings.TrimSpace(query))
	if q == "" {
		return c.entries
	}

	var results []entities.CatalogEntry
	for i, f := range c.folded {
		if strings.Contains(f, q) {
			results = append(results, c.entries[i])
		}
	}
	return results
}

// fold lower-cases s and strips combining marks so "Hemoglobina" matches
// "HEMOGLOBÍNA".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
