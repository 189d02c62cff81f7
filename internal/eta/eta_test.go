package eta

import (
	"testing"
	"time"

	"github.com/example/taxi-dispatch/internal/models"
)

func TestEstimateSecondsScalesWithSpeed(t *testing.T) {
	a := models.Coordinate{Lat: 40.0, Lon: -3.0}
	b := models.Coordinate{Lat: 40.1, Lon: -3.0}
	slow := EstimateSeconds(a, b, 5)
	fast := EstimateSeconds(a, b, 10)
	if slow <= 0 || fast <= 0 {
		t.Fatalf("expected positive estimates, got %f %f", slow, fast)
	}
	if slow <= fast {
		t.Fatalf("slower speed must take longer: %f vs %f", slow, fast)
	}
}

func TestCacheExpiry(t *testing.T) {
	a := models.Coordinate{Lat: 1, Lon: 2}
	b := models.Coordinate{Lat: 3, Lon: 4}
	c := NewCache(10 * time.Millisecond)
	c.Set(a, b, 42)
	if v, ok := c.Get(a, b); !ok || v != 42 {
		t.Fatalf("expected cached 42, got %f %v", v, ok)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(a, b); ok {
		t.Fatal("expected expiry")
	}
}
