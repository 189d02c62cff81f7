package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/taxi-dispatch/internal/models"
)

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/passengers", s.handleRegisterPassenger).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips", s.handleCreateTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips", s.handleListTrips).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{id}", s.handleTripStatus).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{id}/validate", s.handleValidateTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/taxis", s.handleRegisterTaxi).Methods("POST")
	s.mux.HandleFunc("/api/v1/taxis", s.handleListTaxis).Methods("GET")
	s.mux.HandleFunc("/api/v1/taxis/nearby", s.handleNearbyTaxis).Methods("GET")
	s.mux.HandleFunc("/internal/taxi/locations", s.handleTaxiLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{taxi_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleRegisterPassenger(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		MobilePhone string `json:"mobile_phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	p, err := s.Passengers.Register(in.Name, in.Email, in.MobilePhone)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Origin         string `json:"origin"`
		Destination    string `json:"destination"`
		Date           string `json:"date"`
		Time           string `json:"time"`
		PassengerPhone string `json:"passenger_phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	req, err := s.Trips.Create(r.Context(), in.Origin, in.Destination, in.Date, in.Time, in.PassengerPhone)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleTripStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.Trips.Status(mux.Vars(r)["id"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleValidateTrip(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	req, err := s.Trips.Validate(r.Context(), mux.Vars(r)["id"], in.Accept)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"trip_requests": s.Trips.List()})
}

func (s *Server) handleRegisterTaxi(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID           string            `json:"id"`
		LicensePlate string            `json:"license_plate"`
		Location     models.Coordinate `json:"location"`
		DriverEmail  string            `json:"driver_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if in.ID == "" {
		in.ID = newID()
	}
	t := models.Taxi{ID: in.ID, LicensePlate: in.LicensePlate, Location: in.Location, DriverEmail: in.DriverEmail}
	if err := s.Pool.Add(t); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTaxis(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"taxis": s.Pool.Snapshot()})
}

// handleNearbyTaxis serves the fleet-view query: taxis around a point,
// closest first. The Redis GEO index answers when configured; otherwise the
// in-memory pool is scanned.
func (s *Server) handleNearbyTaxis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeError(w, fmt.Errorf("lat and lon are required: %w", models.ErrInvalidInput), http.StatusBadRequest)
		return
	}
	center := models.Coordinate{Lat: lat, Lon: lon}
	if !center.Valid() {
		writeError(w, fmt.Errorf("center out of range: %w", models.ErrInvalidOrigin), http.StatusBadRequest)
		return
	}
	radiusKm := 5.0
	if v := q.Get("radius_km"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p <= 0 {
			writeError(w, fmt.Errorf("radius_km %q: %w", v, models.ErrInvalidInput), http.StatusBadRequest)
			return
		}
		radiusKm = p
	}
	limit := 8
	if v := q.Get("limit"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 {
			writeError(w, fmt.Errorf("limit %q: %w", v, models.ErrInvalidInput), http.StatusBadRequest)
			return
		}
		limit = p
	}

	var taxis []models.Taxi
	if s.Fleet != nil {
		ids, err := s.Fleet.Nearby(r.Context(), center, radiusKm, limit)
		if err != nil {
			s.logger.Warn("redis nearby failed, using pool scan", "error", err)
			taxis = s.Pool.Nearby(center, radiusKm, limit)
		} else {
			taxis = make([]models.Taxi, 0, len(ids))
			for _, id := range ids {
				if t, ok := s.Pool.Get(id); ok {
					taxis = append(taxis, t)
				}
			}
		}
	} else {
		taxis = s.Pool.Nearby(center, radiusKm, limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"taxis": taxis})
}

func (s *Server) handleTaxiLocation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TaxiID   string            `json:"taxi_id"`
		Location models.Coordinate `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if err := s.Pool.UpdateLocation(in.TaxiID, in.Location); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if s.Kafka != nil {
		if t, ok := s.Pool.Get(in.TaxiID); ok {
			if err := s.Kafka.PublishLocation(t); err != nil {
				s.logger.Warn("kafka publish failed", "taxi_id", in.TaxiID, "error", err)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["taxi_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(id, conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error, status int) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps core sentinel errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidSchedule),
		errors.Is(err, models.ErrInvalidOrigin):
		writeError(w, err, http.StatusBadRequest)
	case errors.Is(err, models.ErrAddressNotFound):
		writeError(w, err, http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrTripNotFound),
		errors.Is(err, models.ErrTaxiNotFound),
		errors.Is(err, models.ErrPassengerNotFound):
		writeError(w, err, http.StatusNotFound)
	case errors.Is(err, models.ErrAlreadyFinalized),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrTaxiExists):
		writeError(w, err, http.StatusConflict)
	case errors.Is(err, models.ErrNoTaxiAvailable):
		writeError(w, err, http.StatusServiceUnavailable)
	case errors.Is(err, models.ErrGeocodingTimeout):
		writeError(w, err, http.StatusGatewayTimeout)
	default:
		s.logger.Error("internal error", "error", err)
		writeError(w, err, http.StatusInternalServerError)
	}
}
