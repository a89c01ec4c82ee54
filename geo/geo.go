// Package geo holds the coordinate checks and great-circle math used for
// duplicate detection and service-area checks.
package geo

import (
	"math"
	"strings"

	"streetlight-watch/apperrors"
)

// EarthRadiusMeters is the mean Earth radius of the spherical model.
const EarthRadiusMeters = 6371000.0

// ValidateCoordinates accepts lat in [-90,90] and lng in [-180,180].
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return apperrors.Validation("Coordinates must be numbers")
	}
	if lat < -90 || lat > 90 {
		return apperrors.Validation("Latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return apperrors.Validation("Longitude must be between -180 and 180")
	}
	return nil
}

// Distance returns the haversine distance in meters between two points.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

func WithinRadius(lat1, lng1, lat2, lng2, radiusMeters float64) bool {
	return Distance(lat1, lng1, lat2, lng2) <= radiusMeters
}

// Bounds is an axis-aligned lat/lng box.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
}

func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

var cityBounds = map[string]Bounds{
	"mumbai":    {MinLat: 18.9, MaxLat: 19.3, MinLng: 72.7, MaxLng: 73.0},
	"delhi":     {MinLat: 28.4, MaxLat: 28.9, MinLng: 76.8, MaxLng: 77.3},
	"bangalore": {MinLat: 12.8, MaxLat: 13.2, MinLng: 77.5, MaxLng: 77.7},
}

// CityBounds looks up the service area of a city, case-insensitively.
func CityBounds(city string) (Bounds, bool) {
	b, ok := cityBounds[strings.ToLower(strings.TrimSpace(city))]
	return b, ok
}

// WithinCity reports whether the point is inside the city's service area.
// Cities without a known boundary accept every point; known is false for them.
func WithinCity(lat, lng float64, city string) (within bool, known bool) {
	b, ok := CityBounds(city)
	if !ok {
		return true, false
	}
	return b.Contains(lat, lng), true
}

// BoundingBox returns the box of radiusKm around a point, used for map viewports.
func BoundingBox(lat, lng, radiusKm float64) Bounds {
	latDelta := (radiusKm / (EarthRadiusMeters / 1000)) * (180 / math.Pi)
	lngDelta := latDelta / math.Cos(lat*math.Pi/180)

	return Bounds{
		MinLat: lat - latDelta,
		MaxLat: lat + latDelta,
		MinLng: lng - lngDelta,
		MaxLng: lng + lngDelta,
	}
}

// OffsetNorth returns the latitude reached by moving meters due north.
func OffsetNorth(lat, meters float64) float64 {
	return lat + (meters/EarthRadiusMeters)*(180/math.Pi)
}
