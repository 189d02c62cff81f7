package geo

import (
	"math"
	"testing"

	"github.com/example/taxi-dispatch/internal/models"
)

func TestHaversineZeroForSamePoint(t *testing.T) {
	c := models.Coordinate{Lat: 40.4168, Lon: -3.7038}
	if d := HaversineKm(c, c); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := models.Coordinate{Lat: 40.4168, Lon: -3.7038}
	b := models.Coordinate{Lat: 41.3874, Lon: 2.1686}
	d1 := HaversineKm(a, b)
	d2 := HaversineKm(b, a)
	if math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("not symmetric: %f vs %f", d1, d2)
	}
	if d1 <= 0 {
		t.Fatalf("expected positive distance, got %f", d1)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Madrid to Barcelona is roughly 505 km great-circle
	a := models.Coordinate{Lat: 40.4168, Lon: -3.7038}
	b := models.Coordinate{Lat: 41.3874, Lon: 2.1686}
	d := HaversineKm(a, b)
	if d < 490 || d > 520 {
		t.Fatalf("expected ~505 km, got %f", d)
	}
}
