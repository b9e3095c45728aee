// Package geo holds the small amount of geospatial math the app
// needs - great-circle distance between two lat/lon points.
package geo

import "math"

// EarthRadiusKm is the mean earth radius used by the haversine formula
const EarthRadiusKm = 6371

// Coordinates is a lat/lon pair in degrees
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Haversine returns the great-circle distance in kilometers between
// two points given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Distance returns the great-circle distance in kilometers between
// two coordinate pairs.
func Distance(from, to Coordinates) float64 {
	return Haversine(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
