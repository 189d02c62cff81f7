package pool

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/taxi-dispatch/internal/geo"
	"github.com/example/taxi-dispatch/internal/models"
	"github.com/example/taxi-dispatch/internal/observability"
	"github.com/example/taxi-dispatch/internal/storage"
)

// Pool is the exclusive owner of taxi mutable state. Every transition runs
// under one writer lock so reserve-nearest is a single atomic unit: no two
// callers can reserve the same taxi.
type Pool struct {
	mu     sync.RWMutex
	taxis  map[string]*models.Taxi
	store  storage.TaxiStore // optional; persistence is best-effort
	logger *slog.Logger
}

func New(logger *slog.Logger, store storage.TaxiStore) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{taxis: make(map[string]*models.Taxi), store: store, logger: logger}
}

// Load seeds the pool from the backing store.
func (p *Pool) Load() error {
	if p.store == nil {
		return nil
	}
	taxis, err := p.store.ListTaxis()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range taxis {
		cp := *t
		p.taxis[t.ID] = &cp
	}
	p.refreshGauges()
	return nil
}

// Add registers a taxi with the fleet. Re-registering an existing id is
// rejected; it would silently reset a pending or busy taxi to free.
func (p *Pool) Add(t models.Taxi) error {
	if t.ID == "" {
		return fmt.Errorf("taxi id required: %w", models.ErrInvalidInput)
	}
	if !t.Location.Valid() {
		return fmt.Errorf("taxi %s location: %w", t.ID, models.ErrInvalidOrigin)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.taxis[t.ID]; exists {
		return fmt.Errorf("add %s: %w", t.ID, models.ErrTaxiExists)
	}
	t.Updated = time.Now()
	p.taxis[t.ID] = &t
	p.persist(&t)
	p.refreshGauges()
	return nil
}

// ReserveNearest picks the free taxi closest to origin and marks it pending.
// Ties on distance go to the lowest taxi id, so the choice is deterministic
// regardless of map iteration order.
func (p *Pool) ReserveNearest(origin models.Coordinate) (models.Taxi, error) {
	if !origin.Valid() {
		return models.Taxi{}, models.ErrInvalidOrigin
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *models.Taxi
	bestDist := 0.0
	for _, t := range p.taxis {
		if t.Status() != models.TaxiFree {
			continue
		}
		d := geo.HaversineKm(t.Location, origin)
		switch {
		case best == nil, d < bestDist, d == bestDist && t.ID < best.ID:
			best = t
			bestDist = d
		}
	}
	if best == nil {
		observability.ReservationsFailed.Inc()
		return models.Taxi{}, models.ErrNoTaxiAvailable
	}
	best.Destination = models.DestinationPending
	best.Updated = time.Now()
	p.persist(best)
	p.refreshGauges()
	p.logger.Info("taxi reserved", "taxi_id", best.ID, "plate", best.LicensePlate, "distance_km", bestDist)
	return *best, nil
}

// Commit moves a pending taxi to busy with the trip's destination.
func (p *Pool) Commit(taxiID, destination string) error {
	if destination == "" || destination == models.DestinationPending {
		return fmt.Errorf("commit destination %q: %w", destination, models.ErrInvalidInput)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.taxis[taxiID]
	if !ok {
		return fmt.Errorf("commit %s: %w", taxiID, models.ErrTaxiNotFound)
	}
	if t.Status() != models.TaxiPending {
		return fmt.Errorf("commit %s from %s: %w", taxiID, t.Status(), models.ErrInvalidTransition)
	}
	t.Destination = destination
	t.Updated = time.Now()
	p.persist(t)
	p.refreshGauges()
	return nil
}

// Release returns a pending or busy taxi to the free pool.
func (p *Pool) Release(taxiID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.taxis[taxiID]
	if !ok {
		return fmt.Errorf("release %s: %w", taxiID, models.ErrTaxiNotFound)
	}
	if t.Status() == models.TaxiFree {
		return fmt.Errorf("release %s from free: %w", taxiID, models.ErrInvalidTransition)
	}
	t.Destination = ""
	t.Updated = time.Now()
	p.persist(t)
	p.refreshGauges()
	return nil
}

// UpdateLocation records a driver-reported position. Allowed in any state and
// never touches availability.
func (p *Pool) UpdateLocation(taxiID string, c models.Coordinate) error {
	if !c.Valid() {
		return fmt.Errorf("location for %s: %w", taxiID, models.ErrInvalidOrigin)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.taxis[taxiID]
	if !ok {
		return fmt.Errorf("location for %s: %w", taxiID, models.ErrTaxiNotFound)
	}
	t.Location = c
	t.Updated = time.Now()
	p.persist(t)
	return nil
}

// Get returns a copy of one taxi.
func (p *Pool) Get(taxiID string) (models.Taxi, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.taxis[taxiID]
	if !ok {
		return models.Taxi{}, false
	}
	return *t, true
}

// Nearby returns up to limit taxis within radiusKm of c, closest first.
// It scans the in-memory fleet; deployments with Redis use the GEO index
// instead and fall back here when it is unavailable.
func (p *Pool) Nearby(c models.Coordinate, radiusKm float64, limit int) []models.Taxi {
	p.mu.RLock()
	defer p.mu.RUnlock()
	type scored struct {
		taxi models.Taxi
		dist float64
	}
	hits := make([]scored, 0, len(p.taxis))
	for _, t := range p.taxis {
		d := geo.HaversineKm(t.Location, c)
		if d <= radiusKm {
			hits = append(hits, scored{taxi: *t, dist: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].taxi.ID < hits[j].taxi.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]models.Taxi, len(hits))
	for i, h := range hits {
		out[i] = h.taxi
	}
	return out
}

// Snapshot returns copies of all taxis ordered by id.
func (p *Pool) Snapshot() []models.Taxi {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.Taxi, 0, len(p.taxis))
	for _, t := range p.taxis {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// persist writes through to the store. Failures are logged and do not roll
// back the in-memory transition; the pool stays authoritative.
func (p *Pool) persist(t *models.Taxi) {
	if p.store == nil {
		return
	}
	cp := *t
	if err := p.store.SaveTaxi(&cp); err != nil {
		p.logger.Warn("taxi persist failed", "taxi_id", t.ID, "error", err)
	}
}

// refreshGauges recounts availability gauges; caller holds the lock.
func (p *Pool) refreshGauges() {
	free := 0
	for _, t := range p.taxis {
		if t.Status() == models.TaxiFree {
			free++
		}
	}
	observability.TaxisFree.Set(float64(free))
	observability.TaxisTotal.Set(float64(len(p.taxis)))
}
