package calculator

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lon1      float64
		lat2      float64
		lon2      float64
		expected  float64
		tolerance float64
	}{
		{
			name:      "Same location",
			lat1:      52.3676,
			lon1:      4.9041,
			lat2:      52.3676,
			lon2:      4.9041,
			expected:  0.0,
			tolerance: 0.001,
		},
		{
			name:      "Dam Square to Vondelpark (~2 km)",
			lat1:      52.3731,
			lon1:      4.8926,
			lat2:      52.3580,
			lon2:      4.8686,
			expected:  2.35,
			tolerance: 0.3,
		},
		{
			name:      "Amsterdam to Rotterdam (~57 km)",
			lat1:      52.3676,
			lon1:      4.9041,
			lat2:      51.9244,
			lon2:      4.4777,
			expected:  57.5,
			tolerance: 2.0,
		},
		{
			name:      "Equator crossing",
			lat1:      1.0,
			lon1:      0.0,
			lat2:      -1.0,
			lon2:      0.0,
			expected:  222.4,
			tolerance: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("Haversine() = %.2f km, expected %.2f km (±%.2f km)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestDistanceKm_SymmetricAndZero(t *testing.T) {
	points := []Point{
		{4.9041, 52.3676},
		{4.8686, 52.3580},
		{-74.0060, 40.7128},
		{151.2093, -33.8688},
		{0, 0},
		{179.9, 0.1},
		{-179.9, -0.1},
	}

	for _, a := range points {
		if d := DistanceKm(a, a); d != 0 {
			t.Errorf("DistanceKm(%v, %v) = %f, expected 0", a, a, d)
		}
		for _, b := range points {
			ab := DistanceKm(a, b)
			ba := DistanceKm(b, a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("DistanceKm not symmetric for %v/%v: %f vs %f", a, b, ab, ba)
			}
		}
	}
}

func TestNewPoint(t *testing.T) {
	p := NewPoint(52.3676, 4.9041)
	if p.Lon() != 4.9041 || p.Lat() != 52.3676 {
		t.Errorf("NewPoint() = %v, expected [4.9041 52.3676]", p)
	}
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		km       float64
		expected string
	}{
		{0, "0m away"},
		{0.2, "200m away"},
		{0.0504, "50m away"},
		{0.9994, "999m away"},
		{1, "1.0km away"},
		{1.3, "1.3km away"},
		{12, "12.0km away"},
	}

	for _, tt := range tests {
		if got := FormatDistance(tt.km); got != tt.expected {
			t.Errorf("FormatDistance(%v) = %q, expected %q", tt.km, got, tt.expected)
		}
	}
}

func TestCalculateMetrics(t *testing.T) {
	ref := NewPoint(52.3676, 4.9041)

	t.Run("empty points", func(t *testing.T) {
		metrics := CalculateMetrics(ref, nil)
		if metrics.TotalLocations != 0 {
			t.Errorf("expected TotalLocations 0, got %d", metrics.TotalLocations)
		}
		if metrics.MinDistanceKM != 0 {
			t.Errorf("expected MinDistanceKM 0, got %.2f", metrics.MinDistanceKM)
		}
	})

	t.Run("multiple points", func(t *testing.T) {
		points := []Point{
			ref,
			NewPoint(52.3580, 4.8686),
			NewPoint(51.9244, 4.4777),
		}
		metrics := CalculateMetrics(ref, points)

		if metrics.TotalLocations != 3 {
			t.Errorf("expected TotalLocations 3, got %d", metrics.TotalLocations)
		}
		if metrics.MinDistanceKM > 0.001 {
			t.Errorf("expected MinDistanceKM ~0, got %.4f", metrics.MinDistanceKM)
		}
		if metrics.MaxDistanceKM < 50 || metrics.MaxDistanceKM > 65 {
			t.Errorf("expected MaxDistanceKM between 50-65 km, got %.2f", metrics.MaxDistanceKM)
		}
		if math.Abs(metrics.AvgDistanceKM*3-metrics.TotalDistanceKM) > 1e-9 {
			t.Errorf("expected average to be total/3, got %.2f", metrics.AvgDistanceKM)
		}
	})
}

func TestDegreesToRadians(t *testing.T) {
	tests := []struct {
		degrees  float64
		expected float64
	}{
		{0, 0},
		{90, math.Pi / 2},
		{180, math.Pi},
		{-90, -math.Pi / 2},
	}

	for _, tt := range tests {
		result := degreesToRadians(tt.degrees)
		if math.Abs(result-tt.expected) > 0.0001 {
			t.Errorf("degreesToRadians(%.2f) = %.4f, expected %.4f", tt.degrees, result, tt.expected)
		}
	}
}

func BenchmarkDistanceKm(b *testing.B) {
	p1 := NewPoint(52.3676, 4.9041)
	p2 := NewPoint(52.3580, 4.8686)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DistanceKm(p1, p2)
	}
}
