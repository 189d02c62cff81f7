package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/taxi-dispatch/internal/dispatch"
	"github.com/example/taxi-dispatch/internal/models"
	"github.com/example/taxi-dispatch/internal/notify"
	"github.com/example/taxi-dispatch/internal/passengers"
	"github.com/example/taxi-dispatch/internal/pool"
	"github.com/example/taxi-dispatch/internal/storage"
	"github.com/example/taxi-dispatch/internal/trips"
)

type stubGeocoder struct{}

func (stubGeocoder) Forward(ctx context.Context, address string) (models.Coordinate, error) {
	switch address {
	case "Plaza Mayor":
		return models.Coordinate{Lat: 40.01, Lon: -3.01}, nil
	case "Airport T4":
		return models.Coordinate{Lat: 40.49, Lon: -3.59}, nil
	default:
		return models.Coordinate{}, fmt.Errorf("geocode %q: %w", address, models.ErrAddressNotFound)
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	p := pool.New(logger, store)
	svc := &trips.Service{
		Pool:            p,
		Geocoder:        stubGeocoder{},
		Store:           store,
		Passengers:      store,
		Notifier:        notify.Nop{},
		WS:              dispatch.NewWSRegistry(),
		DefaultSpeedMps: 10,
		Logger:          logger,
	}
	s := &Server{
		Pool:       p,
		Trips:      svc,
		Passengers: &passengers.Service{Store: store, Logger: logger},
		WSReg:      svc.WS,
		logger:     logger,
		mux:        mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestTripRequestFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	// register a taxi and a passenger
	w := doJSON(t, s, "POST", "/api/v1/taxis", `{"id":"t1","license_plate":"1111AAA","location":{"lat":40.0,"lon":-3.0},"driver_email":"d@example.com"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("taxi register: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, "POST", "/api/v1/passengers", `{"name":"Ana","email":"ana@example.com","mobile_phone":"612345678"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("passenger register: %d %s", w.Code, w.Body.String())
	}

	// create a trip for tomorrow
	date := time.Now().Add(24 * time.Hour).Format("02/01/2006")
	w = doJSON(t, s, "POST", "/api/v1/trips",
		fmt.Sprintf(`{"origin":"Plaza Mayor","destination":"Airport T4","date":"%s","time":"10:30","passenger_phone":"612345678"}`, date))
	if w.Code != http.StatusCreated {
		t.Fatalf("trip create: %d %s", w.Code, w.Body.String())
	}
	var created models.TripRequest
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.TaxiID != "t1" || created.Status != models.TripPending {
		t.Fatalf("unexpected trip: %+v", created)
	}

	// poll status
	w = doJSON(t, s, "GET", "/api/v1/trips/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}

	// admin accepts
	w = doJSON(t, s, "POST", "/api/v1/trips/"+created.ID+"/validate", `{"accept":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("validate: %d %s", w.Code, w.Body.String())
	}

	// duplicate decision conflicts
	w = doJSON(t, s, "POST", "/api/v1/trips/"+created.ID+"/validate", `{"accept":false}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate validate: expected 409, got %d", w.Code)
	}
}

func TestWebsocketUpgradeThroughMiddleware(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	// dial through the real middleware chain, not a bare handler
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/t1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", url, err, status)
	}
	defer conn.Close()

	want := dispatch.Assignment{
		TripID:      "trip-1",
		Origin:      "Plaza Mayor",
		Destination: "Airport T4",
		ScheduledAt: "01/01/2030 10:30",
		Passenger:   "612345678",
	}
	if err := s.WSReg.Push("t1", want); err != nil {
		t.Fatalf("push: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got dispatch.Assignment
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read assignment: %v", err)
	}
	if got != want {
		t.Fatalf("assignment mismatch: got %+v want %+v", got, want)
	}
}

func TestNearbyTaxis(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, "POST", "/api/v1/taxis", `{"id":"t1","license_plate":"1111AAA","location":{"lat":40.0,"lon":-3.0}}`)
	doJSON(t, s, "POST", "/api/v1/taxis", `{"id":"t2","license_plate":"2222BBB","location":{"lat":40.1,"lon":-3.1}}`)
	doJSON(t, s, "POST", "/api/v1/taxis", `{"id":"t3","license_plate":"3333CCC","location":{"lat":41.5,"lon":-4.5}}`)

	w := doJSON(t, s, "GET", "/api/v1/taxis/nearby?lat=40.01&lon=-3.01&radius_km=50", "")
	if w.Code != http.StatusOK {
		t.Fatalf("nearby: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		Taxis []models.Taxi `json:"taxis"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Taxis) != 2 {
		t.Fatalf("expected 2 taxis within 50km, got %d: %+v", len(out.Taxis), out.Taxis)
	}
	if out.Taxis[0].ID != "t1" || out.Taxis[1].ID != "t2" {
		t.Fatalf("expected closest-first [t1 t2], got [%s %s]", out.Taxis[0].ID, out.Taxis[1].ID)
	}

	w = doJSON(t, s, "GET", "/api/v1/taxis/nearby?lat=40.01&lon=-3.01&radius_km=50&limit=1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Taxis) != 1 || out.Taxis[0].ID != "t1" {
		t.Fatalf("limit=1: expected [t1], got %+v", out.Taxis)
	}

	for _, path := range []string{
		"/api/v1/taxis/nearby",
		"/api/v1/taxis/nearby?lat=abc&lon=-3.01",
		"/api/v1/taxis/nearby?lat=95.0&lon=-3.01",
		"/api/v1/taxis/nearby?lat=40.01&lon=-3.01&radius_km=-1",
		"/api/v1/taxis/nearby?lat=40.01&lon=-3.01&limit=0",
	} {
		w = doJSON(t, s, "GET", path, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestRegisterTaxiDuplicateConflicts(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, "POST", "/api/v1/taxis", `{"id":"t1","license_plate":"1111AAA","location":{"lat":40.0,"lon":-3.0}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("first register: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, "POST", "/api/v1/taxis", `{"id":"t1","license_plate":"9999ZZZ","location":{"lat":41.0,"lon":-4.0}}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d %s", w.Code, w.Body.String())
	}
}

func TestCreateTripErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	date := time.Now().Add(24 * time.Hour).Format("02/01/2006")

	// empty pool
	w := doJSON(t, s, "POST", "/api/v1/trips",
		fmt.Sprintf(`{"origin":"Plaza Mayor","destination":"Airport T4","date":"%s","time":"10:30","passenger_phone":"612345678"}`, date))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("no taxi: expected 503, got %d", w.Code)
	}

	doJSON(t, s, "POST", "/api/v1/taxis", `{"id":"t1","license_plate":"1111AAA","location":{"lat":40.0,"lon":-3.0}}`)

	// unknown address
	w = doJSON(t, s, "POST", "/api/v1/trips",
		fmt.Sprintf(`{"origin":"Nowhere","destination":"Airport T4","date":"%s","time":"10:30","passenger_phone":"612345678"}`, date))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad address: expected 422, got %d", w.Code)
	}

	// past schedule
	w = doJSON(t, s, "POST", "/api/v1/trips",
		`{"origin":"Plaza Mayor","destination":"Airport T4","date":"01/01/2020","time":"10:30","passenger_phone":"612345678"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("past schedule: expected 400, got %d", w.Code)
	}

	// unknown trip id
	w = doJSON(t, s, "GET", "/api/v1/trips/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown trip: expected 404, got %d", w.Code)
	}
}
