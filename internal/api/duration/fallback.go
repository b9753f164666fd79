package duration

import (
	"math"

	"github.com/xco2/tripspot/internal/types"
)

const (
	earthRadiusMeters = 6371000.0
	// DefaultFallbackSpeedKmh is the assumed urban driving speed for straight-line estimates.
	DefaultFallbackSpeedKmh = 30.0
)

// DistanceMeters is the great-circle distance between two places.
func DistanceMeters(from, to types.Place) float64 {
	lat1 := from.Latitude * math.Pi / 180
	lat2 := to.Latitude * math.Pi / 180
	dlat := (to.Latitude - from.Latitude) * math.Pi / 180
	dlon := (to.Longitude - from.Longitude) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// StraightLineSeconds estimates travel time as distance over a constant speed.
func StraightLineSeconds(from, to types.Place, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = DefaultFallbackSpeedKmh
	}
	metersPerSecond := speedKmh * 1000 / 3600
	return DistanceMeters(from, to) / metersPerSecond
}
