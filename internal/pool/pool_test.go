package pool

import (
	"errors"
	"sync"
	"testing"

	"github.com/example/taxi-dispatch/internal/models"
)

func newTestPool(t *testing.T, taxis ...models.Taxi) *Pool {
	t.Helper()
	p := New(nil, nil)
	for _, taxi := range taxis {
		if err := p.Add(taxi); err != nil {
			t.Fatalf("add %s: %v", taxi.ID, err)
		}
	}
	return p
}

func TestReserveNearestPicksClosestFree(t *testing.T) {
	p := newTestPool(t,
		models.Taxi{ID: "t1", LicensePlate: "AAA", Location: models.Coordinate{Lat: 40.0, Lon: -3.0}},
		models.Taxi{ID: "t2", LicensePlate: "BBB", Location: models.Coordinate{Lat: 40.1, Lon: -3.1}},
	)
	taxi, err := p.ReserveNearest(models.Coordinate{Lat: 40.01, Lon: -3.01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if taxi.ID != "t1" {
		t.Fatalf("expected t1 (closer), got %s", taxi.ID)
	}
	got, _ := p.Get("t1")
	if got.Status() != models.TaxiPending {
		t.Fatalf("expected reserved taxi pending, got %s", got.Status())
	}
}

func TestReserveNearestSkipsNonFree(t *testing.T) {
	p := newTestPool(t,
		models.Taxi{ID: "t1", Location: models.Coordinate{Lat: 40.0, Lon: -3.0}, Destination: "airport"},
		models.Taxi{ID: "t2", Location: models.Coordinate{Lat: 41.0, Lon: -4.0}},
	)
	taxi, err := p.ReserveNearest(models.Coordinate{Lat: 40.0, Lon: -3.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if taxi.ID != "t2" {
		t.Fatalf("busy taxi must never be reserved; got %s", taxi.ID)
	}
}

func TestReserveNearestTieBreakLowestID(t *testing.T) {
	loc := models.Coordinate{Lat: 40.0, Lon: -3.0}
	p := newTestPool(t,
		models.Taxi{ID: "t9", Location: loc},
		models.Taxi{ID: "t2", Location: loc},
		models.Taxi{ID: "t5", Location: loc},
	)
	taxi, err := p.ReserveNearest(loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if taxi.ID != "t2" {
		t.Fatalf("expected lowest id on tie, got %s", taxi.ID)
	}
}

func TestReserveNearestNoTaxiAvailable(t *testing.T) {
	p := newTestPool(t)
	_, err := p.ReserveNearest(models.Coordinate{Lat: 40.0, Lon: -3.0})
	if !errors.Is(err, models.ErrNoTaxiAvailable) {
		t.Fatalf("expected ErrNoTaxiAvailable, got %v", err)
	}
}

func TestReserveNearestInvalidOrigin(t *testing.T) {
	p := newTestPool(t, models.Taxi{ID: "t1", Location: models.Coordinate{Lat: 40.0, Lon: -3.0}})
	_, err := p.ReserveNearest(models.Coordinate{Lat: 123.0, Lon: 0})
	if !errors.Is(err, models.ErrInvalidOrigin) {
		t.Fatalf("expected ErrInvalidOrigin, got %v", err)
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	p := newTestPool(t, models.Taxi{ID: "t1", LicensePlate: "AAA", Location: models.Coordinate{Lat: 40.0, Lon: -3.0}})
	if _, err := p.ReserveNearest(models.Coordinate{Lat: 40.0, Lon: -3.0}); err != nil {
		t.Fatal(err)
	}

	err := p.Add(models.Taxi{ID: "t1", LicensePlate: "ZZZ", Location: models.Coordinate{Lat: 41.0, Lon: -4.0}})
	if !errors.Is(err, models.ErrTaxiExists) {
		t.Fatalf("expected ErrTaxiExists, got %v", err)
	}

	// the re-register attempt must not reset the pending reservation
	got, _ := p.Get("t1")
	if got.Status() != models.TaxiPending || got.LicensePlate != "AAA" {
		t.Fatalf("existing taxi clobbered: status %s plate %q", got.Status(), got.LicensePlate)
	}
}

func TestNearbyOrdersByDistanceAndHonorsBounds(t *testing.T) {
	p := newTestPool(t,
		models.Taxi{ID: "t1", Location: models.Coordinate{Lat: 40.0, Lon: -3.0}},
		models.Taxi{ID: "t2", Location: models.Coordinate{Lat: 40.1, Lon: -3.1}},
		models.Taxi{ID: "t3", Location: models.Coordinate{Lat: 41.5, Lon: -4.5}},
	)
	center := models.Coordinate{Lat: 40.01, Lon: -3.01}

	got := p.Nearby(center, 50, 10)
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Fatalf("expected [t1 t2] within 50km, got %+v", got)
	}

	got = p.Nearby(center, 50, 1)
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("limit 1: expected [t1], got %+v", got)
	}

	if got = p.Nearby(center, 0.1, 10); len(got) != 0 {
		t.Fatalf("tight radius: expected no taxis, got %+v", got)
	}
}

func TestConcurrentReserveSingleFreeTaxi(t *testing.T) {
	p := newTestPool(t, models.Taxi{ID: "t1", Location: models.Coordinate{Lat: 40.0, Lon: -3.0}})
	origin := models.Coordinate{Lat: 40.0, Lon: -3.0}

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan string, callers)
	losses := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			taxi, err := p.ReserveNearest(origin)
			if err != nil {
				losses <- err
				return
			}
			wins <- taxi.ID
		}()
	}
	wg.Wait()
	close(wins)
	close(losses)

	if got := len(wins); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
	for err := range losses {
		if !errors.Is(err, models.ErrNoTaxiAvailable) {
			t.Fatalf("loser should see ErrNoTaxiAvailable, got %v", err)
		}
	}
}

func TestCommitAndRelease(t *testing.T) {
	p := newTestPool(t, models.Taxi{ID: "t1", Location: models.Coordinate{Lat: 40.0, Lon: -3.0}})
	if _, err := p.ReserveNearest(models.Coordinate{Lat: 40.0, Lon: -3.0}); err != nil {
		t.Fatal(err)
	}

	if err := p.Commit("t1", "Calle Mayor 10"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, _ := p.Get("t1")
	if got.Status() != models.TaxiBusy || got.Destination != "Calle Mayor 10" {
		t.Fatalf("expected busy with destination, got %s %q", got.Status(), got.Destination)
	}

	// commit again must fail: taxi is no longer pending
	if err := p.Commit("t1", "elsewhere"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if err := p.Release("t1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ = p.Get("t1")
	if got.Status() != models.TaxiFree {
		t.Fatalf("expected free after release, got %s", got.Status())
	}

	if err := p.Release("t1"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("releasing a free taxi: expected ErrInvalidTransition, got %v", err)
	}
}

func TestCommitRejectsPendingMarkerAsDestination(t *testing.T) {
	p := newTestPool(t, models.Taxi{ID: "t1", Location: models.Coordinate{Lat: 40.0, Lon: -3.0}})
	if _, err := p.ReserveNearest(models.Coordinate{Lat: 40.0, Lon: -3.0}); err != nil {
		t.Fatal(err)
	}
	if err := p.Commit("t1", models.DestinationPending); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateLocationKeepsAvailability(t *testing.T) {
	p := newTestPool(t, models.Taxi{ID: "t1", Location: models.Coordinate{Lat: 40.0, Lon: -3.0}})
	if _, err := p.ReserveNearest(models.Coordinate{Lat: 40.0, Lon: -3.0}); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdateLocation("t1", models.Coordinate{Lat: 40.5, Lon: -3.5}); err != nil {
		t.Fatalf("update location: %v", err)
	}
	got, _ := p.Get("t1")
	if got.Status() != models.TaxiPending {
		t.Fatalf("location update must not change availability, got %s", got.Status())
	}
	if got.Location.Lat != 40.5 {
		t.Fatalf("location not updated: %+v", got.Location)
	}

	if err := p.UpdateLocation("ghost", models.Coordinate{}); !errors.Is(err, models.ErrTaxiNotFound) {
		t.Fatalf("expected ErrTaxiNotFound, got %v", err)
	}
}
