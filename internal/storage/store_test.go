package storage

import (
	"testing"
	"time"

	"github.com/example/taxi-dispatch/internal/models"
)

func TestMemoryStoreTripReturnsCopies(t *testing.T) {
	m := NewMemoryStore()
	trip := &models.TripRequest{ID: "r1", Status: models.TripPending, CreatedAt: time.Now()}
	if err := m.SaveTrip(trip); err != nil {
		t.Fatal(err)
	}

	got, ok := m.GetTrip("r1")
	if !ok {
		t.Fatal("trip not found")
	}
	got.Status = models.TripValidated

	again, _ := m.GetTrip("r1")
	if again.Status != models.TripPending {
		t.Fatal("mutating a returned trip must not affect the store")
	}
}

func TestMemoryStoreListTripsOrderedByCreation(t *testing.T) {
	m := NewMemoryStore()
	base := time.Now()
	_ = m.SaveTrip(&models.TripRequest{ID: "b", CreatedAt: base.Add(time.Second)})
	_ = m.SaveTrip(&models.TripRequest{ID: "a", CreatedAt: base})

	trips := m.ListTrips()
	if len(trips) != 2 || trips[0].ID != "a" || trips[1].ID != "b" {
		t.Fatalf("expected creation order, got %v", trips)
	}
}

func TestMemoryStorePassengerLookup(t *testing.T) {
	m := NewMemoryStore()
	_ = m.SavePassenger(&models.Passenger{ID: "p1", Email: "a@b.com", MobilePhone: "612345678"})

	if _, ok := m.GetPassengerByPhone("612345678"); !ok {
		t.Fatal("phone lookup failed")
	}
	if _, ok := m.GetPassengerByEmail("a@b.com"); !ok {
		t.Fatal("email lookup failed")
	}
	if _, ok := m.GetPassengerByPhone("600000000"); ok {
		t.Fatal("unexpected passenger")
	}
}
