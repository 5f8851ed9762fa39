// Package geo implements the Resolver interface with a great-circle nearest
// neighbour search over the catalog locations.
package geo

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/nadzzz/stockline/internal/catalog"
	"github.com/nadzzz/stockline/internal/locator"
)

// earthRadiusKm is the mean Earth radius.
const earthRadiusKm = 6371.0088

// Resolver picks the closest location by haversine distance.
type Resolver struct {
	locations []catalog.Location
	logger    *slog.Logger
}

// New creates a resolver over the catalog locations.
func New() *Resolver {
	return &Resolver{
		locations: catalog.Locations(),
		logger:    slog.Default().With("component", "geo-locator"),
	}
}

// Name returns the backend identifier.
func (r *Resolver) Name() string { return "haversine" }

// Nearest returns the location with the smallest great-circle distance to c.
// Ties keep the earlier catalog entry.
func (r *Resolver) Nearest(ctx context.Context, c catalog.Coordinates) (catalog.Location, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Location{}, err
	}
	if !c.Valid() {
		return catalog.Location{}, fmt.Errorf("%w: invalid coordinates %s", locator.ErrUnresolved, c)
	}
	if len(r.locations) == 0 {
		return catalog.Location{}, locator.ErrUnresolved
	}

	best := r.locations[0]
	bestKm := Distance(c, best.Coordinates)
	for _, l := range r.locations[1:] {
		if d := Distance(c, l.Coordinates); d < bestKm {
			best, bestKm = l, d
		}
	}

	r.logger.Debug("nearest location resolved", "location", best.Name, "distance_km", math.Round(bestKm*10)/10)
	return best, nil
}

// Distance returns the great-circle distance between a and b in kilometres.
func Distance(a, b catalog.Coordinates) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
