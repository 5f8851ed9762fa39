// Package query composes the natural-language question sent to the
// retrieval backend.
package query

import (
	"fmt"

	"github.com/nadzzz/stockline/internal/catalog"
)

const (
	withLocation    = "Check the stock of %s at %s. How many are available?"
	withoutLocation = "Check the stock of %s. How many are in stock?"
	itemLookup      = "How many of %s is currently available in stock?"
)

// Resolved is the outcome of the resolution steps for one request. It is
// built once by New and not modified afterwards.
type Resolved struct {
	Item     string
	Location *catalog.Location
	Question string
}

// New builds a Resolved for item and the optional location.
func New(item string, loc *catalog.Location) Resolved {
	var l *catalog.Location
	if loc != nil {
		cp := *loc
		l = &cp
	}
	return Resolved{Item: item, Location: l, Question: Compose(item, loc)}
}

// Compose returns the stock question for item. The location form is used
// only when loc is non-nil.
func Compose(item string, loc *catalog.Location) string {
	if loc != nil {
		return fmt.Sprintf(withLocation, item, loc.Name)
	}
	return fmt.Sprintf(withoutLocation, item)
}

// ItemLookup returns the question used for a direct item lookup.
func ItemLookup(item string) string {
	return fmt.Sprintf(itemLookup, item)
}
