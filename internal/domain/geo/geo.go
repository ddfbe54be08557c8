// Package geo computes geodesic distance between login locations.
//
// Locations arrive as free text ("City, Country"). Known cities resolve
// through a small built-in gazetteer; unknown strings get stable
// hash-derived coordinates so that distinct locations always produce a
// non-zero jump while identical strings produce zero.
package geo

import (
	"hash/fnv"
	"math"
	"strings"
)

const earthRadiusKM = 6371.0

// Coordinates is a geocoded point.
type Coordinates struct {
	Lat float64
	Lon float64
}

// gazetteer covers the locations the demo generator and seeders emit.
var gazetteer = map[string]Coordinates{
	"new york, us":      {40.7128, -74.0060},
	"los angeles, us":   {34.0522, -118.2437},
	"chicago, us":       {41.8781, -87.6298},
	"san francisco, us": {37.7749, -122.4194},
	"london, uk":        {51.5074, -0.1278},
	"paris, fr":         {48.8566, 2.3522},
	"berlin, de":        {52.5200, 13.4050},
	"amsterdam, nl":     {52.3676, 4.9041},
	"moscow, ru":        {55.7558, 37.6173},
	"beijing, cn":       {39.9042, 116.4074},
	"tokyo, jp":         {35.6762, 139.6503},
	"singapore, sg":     {1.3521, 103.8198},
	"sydney, au":        {-33.8688, 151.2093},
	"sao paulo, br":     {-23.5505, -46.6333},
	"lagos, ng":         {6.5244, 3.3792},
	"mumbai, in":        {19.0760, 72.8777},
	"istanbul, tr":      {41.0082, 28.9784},
	"unknown, xx":       {0, 0},
}

// Geocode resolves a location string to coordinates.
func Geocode(location string) Coordinates {
	key := strings.ToLower(strings.TrimSpace(location))
	if c, ok := gazetteer[key]; ok {
		return c
	}
	return pseudoCoordinates(key)
}

// pseudoCoordinates derives stable coordinates from the location string.
// Latitude stays within [-60, 60] so distances remain plausible.
func pseudoCoordinates(key string) Coordinates {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum64()

	lat := float64(sum%120_000)/1000.0 - 60.0
	lon := float64((sum/120_000)%360_000)/1000.0 - 180.0
	return Coordinates{Lat: lat, Lon: lon}
}

// Distance returns the haversine distance in kilometers between two
// location strings. Identical strings yield exactly zero.
func Distance(a, b string) float64 {
	na := strings.ToLower(strings.TrimSpace(a))
	nb := strings.ToLower(strings.TrimSpace(b))
	if na == nb {
		return 0
	}
	return Haversine(Geocode(na), Geocode(nb))
}

// Haversine computes the great-circle distance between two points in km.
func Haversine(p, q Coordinates) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := q.Lat * math.Pi / 180
	dLat := (q.Lat - p.Lat) * math.Pi / 180
	dLon := (q.Lon - p.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}
