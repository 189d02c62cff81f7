package dispatch

import (
	"errors"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Assignment is the JSON payload pushed to a connected driver when the admin
// confirms a trip for their taxi.
type Assignment struct {
	TripID      string `json:"trip_id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	ScheduledAt string `json:"scheduled_at"`
	Passenger   string `json:"passenger_phone"`
}

// WSSession represents a connected driver session.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(a)
}

// WSRegistry holds driver sessions keyed by taxi id.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(taxiID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[taxiID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(taxiID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, taxiID)
}

// Push delivers the assignment to the driver's live session, if any.
func (r *WSRegistry) Push(taxiID string, a Assignment) error {
	r.mu.RLock()
	s, ok := r.sessions[taxiID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(a); err != nil {
		log.Printf("ws send error: %v", err)
		return err
	}
	return nil
}

var ErrNoSession = errors.New("no ws session")
