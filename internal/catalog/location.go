package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coordinates is a WGS 84 latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both components are finite and within range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// String formats the pair as "lat, lon".
func (c Coordinates) String() string {
	return fmt.Sprintf("%g, %g", c.Latitude, c.Longitude)
}

// ParseCoordinates parses a latitude/longitude pair supplied as strings.
// The pair is all-or-nothing: if either side is blank, unparseable or out
// of range, ok is false and the caller must treat location as absent.
func ParseCoordinates(latitude, longitude string) (Coordinates, bool) {
	latitude = strings.TrimSpace(latitude)
	longitude = strings.TrimSpace(longitude)
	if latitude == "" || longitude == "" {
		return Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(latitude, 64)
	if err != nil {
		return Coordinates{}, false
	}
	lon, err := strconv.ParseFloat(longitude, 64)
	if err != nil {
		return Coordinates{}, false
	}
	c := Coordinates{Latitude: lat, Longitude: lon}
	if !c.Valid() {
		return Coordinates{}, false
	}
	return c, true
}

// Location is a named donation center. Name is the canonical address that
// appears in questions sent to the retrieval backend.
type Location struct {
	Name        string
	Coordinates Coordinates
}

var locations = []Location{
	{Name: "880 Mabury Rd, San Jose, CA 95133", Coordinates: Coordinates{Latitude: 37.3635, Longitude: -121.8641}},
	{Name: "1781 Union St, San Francisco, CA 94123", Coordinates: Coordinates{Latitude: 37.7980, Longitude: -122.4290}},
	{Name: "2508 Historic Decatur Rd, San Diego, CA 92106", Coordinates: Coordinates{Latitude: 32.7393, Longitude: -117.2127}},
	{Name: "320 E 43rd St, New York, NY 10017", Coordinates: Coordinates{Latitude: 40.7502, Longitude: -73.9707}},
}

// Locations returns a copy of the donation center list.
func Locations() []Location {
	out := make([]Location, len(locations))
	copy(out, locations)
	return out
}

// LookupLocation returns the location whose address is exactly name.
func LookupLocation(name string) (Location, bool) {
	for _, l := range locations {
		if l.Name == name {
			return l, true
		}
	}
	return Location{}, false
}
