package storage

import (
	"sort"
	"sync"

	"github.com/example/taxi-dispatch/internal/models"
)

// TripStore defines persistence operations for trip requests. Terminal trips
// are never deleted; history stays for audit.
type TripStore interface {
	SaveTrip(t *models.TripRequest) error
	UpdateTrip(t *models.TripRequest) error
	GetTrip(id string) (*models.TripRequest, bool)
	ListTrips() []*models.TripRequest
}

// TaxiStore persists taxi records as flat rows keyed by id.
type TaxiStore interface {
	SaveTaxi(t *models.Taxi) error
	UpdateTaxi(t *models.Taxi) error
	ListTaxis() ([]*models.Taxi, error)
}

// PassengerStore is the contact directory consumed by notifications.
type PassengerStore interface {
	SavePassenger(p *models.Passenger) error
	GetPassengerByPhone(phone string) (*models.Passenger, bool)
	GetPassengerByEmail(email string) (*models.Passenger, bool)
}

// Store bundles the three record kinds behind one persistence boundary.
type Store interface {
	TripStore
	TaxiStore
	PassengerStore
}

type MemoryStore struct {
	mu         sync.RWMutex
	trips      map[string]*models.TripRequest
	taxis      map[string]*models.Taxi
	passengers map[string]*models.Passenger // keyed by phone
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:      make(map[string]*models.TripRequest),
		taxis:      make(map[string]*models.Taxi),
		passengers: make(map[string]*models.Passenger),
	}
}

func (m *MemoryStore) SaveTrip(t *models.TripRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateTrip(t *models.TripRequest) error { return m.SaveTrip(t) }

func (m *MemoryStore) GetTrip(id string) (*models.TripRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (m *MemoryStore) ListTrips() []*models.TripRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.TripRequest, 0, len(m.trips))
	for _, t := range m.trips {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *MemoryStore) SaveTaxi(t *models.Taxi) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.taxis[t.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateTaxi(t *models.Taxi) error { return m.SaveTaxi(t) }

func (m *MemoryStore) ListTaxis() ([]*models.Taxi, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Taxi, 0, len(m.taxis))
	for _, t := range m.taxis {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SavePassenger(p *models.Passenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.passengers[p.MobilePhone] = &cp
	return nil
}

func (m *MemoryStore) GetPassengerByPhone(phone string) (*models.Passenger, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.passengers[phone]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (m *MemoryStore) GetPassengerByEmail(email string) (*models.Passenger, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.passengers {
		if p.Email == email {
			cp := *p
			return &cp, true
		}
	}
	return nil, false
}
