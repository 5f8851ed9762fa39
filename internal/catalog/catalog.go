// Package catalog holds the closed reference data the resolution pipeline
// works against: the inventory items the service knows how to ask about and
// the donation centers it can resolve coordinates to.
//
// Both lists are fixed at build time and never mutated, so they are safe to
// read from any number of concurrent requests.
package catalog

import (
	"strings"
)

// NoMatch is the sentinel analysis value reported when a transcript does not
// name any catalog item. It is a legitimate outcome, not an error.
const NoMatch = "No matching items found"

// Item is a canonical inventory item name.
type Item string

// String returns the canonical name.
func (i Item) String() string { return string(i) }

var items = []Item{
	"Canned Black Beans",
	"Chicken Noodle Soup",
	"Boxes of Diapers",
	"Children's Multivitamins",
	"Winter Coats",
	"Shelf-Stable Milk",
	"Boxes of Cereal",
	"Toothbrush Kits",
	"Lays Chips",
	"Reusable Water Bottles",
	"Canned Tuna",
	"Bags of Rice",
	"First-Aid Kits",
	"Hand Sanitizer",
	"Blankets/Throws",
	"Peanut Butter Jars",
	"Pasta & Sauce Kits",
	"Feminine Hygiene Pads",
	"Reading Glasses",
	"Backpacks",
}

var itemSet = func() map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		m[string(it)] = it
	}
	return m
}()

// Items returns a copy of the catalog in its canonical order.
func Items() []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// LookupItem returns the catalog item whose name is exactly s.
// The comparison is case-sensitive; near misses are rejected.
func LookupItem(s string) (Item, bool) {
	it, ok := itemSet[s]
	return it, ok
}

// ParseItems extracts catalog items from free text that is expected to hold
// a comma- or newline-separated list of exact item names, such as a
// classifier reply. Entries that are not exact catalog names are dropped,
// duplicates are removed, and the order of first appearance is kept.
func ParseItems(text string) []Item {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	var out []Item
	seen := make(map[Item]bool, len(fields))
	for _, f := range fields {
		f = strings.Trim(strings.TrimSpace(f), "\"'`*-• \t\r")
		f = strings.TrimSuffix(f, ".")
		it, ok := LookupItem(f)
		if !ok || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

// JoinItems renders items the way the classifier contract does:
// comma-separated, or the NoMatch sentinel when the list is empty.
func JoinItems(list []Item) string {
	if len(list) == 0 {
		return NoMatch
	}
	names := make([]string, len(list))
	for i, it := range list {
		names[i] = string(it)
	}
	return strings.Join(names, ", ")
}
