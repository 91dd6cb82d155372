// Package calculator provides GPS distance calculations using the Haversine formula
// to compute great-circle distances between venue coordinates.
package calculator

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// EarthRadiusKM is the Earth's radius in kilometers
	EarthRadiusKM = 6371.0
)

// Point is a WGS84 coordinate in [longitude, latitude] order, the same order
// GeoJSON and the map surface use.
type Point = orb.Point

// NewPoint builds a Point from latitude and longitude.
func NewPoint(lat, lon float64) Point {
	return Point{lon, lat}
}

// DistanceKm calculates the great-circle distance between two [lon, lat] points.
func DistanceKm(a, b Point) float64 {
	return Haversine(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

// Haversine calculates the great-circle distance between two points
// on the Earth's surface given their latitudes and longitudes in decimal degrees
//
// Formula:
// a = sin²(Δφ/2) + cos φ1 ⋅ cos φ2 ⋅ sin²(Δλ/2)
// c = 2 ⋅ atan2( √a, √(1−a) )
// d = R ⋅ c
//
// where:
// φ is latitude, λ is longitude, R is earth's radius (6371 km)
// Δφ is the difference in latitude, Δλ is the difference in longitude
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := degreesToRadians(lat1)
	lat2Rad := degreesToRadians(lat2)

	deltaLat := degreesToRadians(lat2 - lat1)
	deltaLon := degreesToRadians(lon2 - lon1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c
}

// degreesToRadians converts degrees to radians
func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// FormatDistance renders a distance for the list view: whole metres below
// one kilometre, otherwise kilometres with one decimal.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dm away", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1fkm away", km)
}

// DistanceMetrics holds calculated distance statistics
type DistanceMetrics struct {
	TotalDistanceKM float64 `json:"total_distance_km"`
	MaxDistanceKM   float64 `json:"max_distance_km"`
	MinDistanceKM   float64 `json:"min_distance_km"`
	TotalLocations  int     `json:"total_locations"`
	AvgDistanceKM   float64 `json:"avg_distance_km"`
}

// CalculateMetrics computes distance metrics for a set of points relative to ref
func CalculateMetrics(ref Point, points []Point) DistanceMetrics {
	if len(points) == 0 {
		return DistanceMetrics{}
	}

	metrics := DistanceMetrics{
		TotalLocations: len(points),
		MinDistanceKM:  math.MaxFloat64,
	}

	var totalDistance float64

	for _, p := range points {
		distance := DistanceKm(ref, p)
		totalDistance += distance

		if distance > metrics.MaxDistanceKM {
			metrics.MaxDistanceKM = distance
		}
		if distance < metrics.MinDistanceKM {
			metrics.MinDistanceKM = distance
		}
	}

	metrics.TotalDistanceKM = totalDistance
	metrics.AvgDistanceKM = totalDistance / float64(len(points))

	return metrics
}
