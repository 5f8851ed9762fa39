// Package locator defines the interface for resolving a coordinate pair to
// the nearest donation center in the catalog.
//
// Location is an enrichment: the pipeline only calls a Resolver when the
// request carried coordinates, and carries on without a location when the
// Resolver fails.
package locator

import (
	"context"
	"errors"

	"github.com/nadzzz/stockline/internal/catalog"
)

// ErrUnresolved is returned when a backend cannot name one of the catalog
// locations.
var ErrUnresolved = errors.New("location could not be resolved")

// Resolver maps coordinates onto the closed set of catalog locations.
type Resolver interface {
	// Name returns the backend identifier (e.g., "haversine", "llm").
	Name() string

	// Nearest returns the catalog location closest to c. The returned
	// location is always a member of catalog.Locations().
	Nearest(ctx context.Context, c catalog.Coordinates) (catalog.Location, error)
}
