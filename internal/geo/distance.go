package geo

import "math"

const (
	// EarthRadiusKm is Earth's mean radius in kilometers for Haversine calculation.
	EarthRadiusKm = 6371.0
	// MetersPerKm is the conversion factor from kilometers to meters.
	MetersPerKm = 1000.0
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// KmToMeters converts kilometers to meters.
func KmToMeters(km float64) float64 {
	return km * MetersPerKm
}

// HaversineKm calculates the great-circle distance between two points
// on Earth in kilometers using the Haversine formula.
func HaversineKm(a, b Point) float64 {
	const degToRad = math.Pi / 180
	dLat := (b.Lat - a.Lat) * degToRad
	dLng := (b.Lng - a.Lng) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*degToRad)*math.Cos(b.Lat*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// IsWithinRadius checks if two points are within the given radius in meters.
func IsWithinRadius(a, b Point, radiusMeters float64) bool {
	return KmToMeters(HaversineKm(a, b)) <= radiusMeters
}

// Valid reports whether p is a usable coordinate.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}
