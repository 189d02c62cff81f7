package trips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/taxi-dispatch/internal/dispatch"
	"github.com/example/taxi-dispatch/internal/eta"
	"github.com/example/taxi-dispatch/internal/models"
	"github.com/example/taxi-dispatch/internal/notify"
	"github.com/example/taxi-dispatch/internal/observability"
	"github.com/example/taxi-dispatch/internal/payments"
	"github.com/example/taxi-dispatch/internal/pool"
	"github.com/example/taxi-dispatch/internal/storage"
)

// acceptedDateLayouts mirror the date formats the booking form accepts,
// day/month/year with one- or two-digit day and month.
var acceptedDateLayouts = []string{"2/1/2006", "2/01/2006", "02/1/2006", "02/01/2006"}

const timeLayout = "15:04"

// fareHoldCents is the flat pre-authorization placed per trip when payments
// are configured.
const fareHoldCents = 1500

// Service owns the trip-request lifecycle: create with an atomic taxi
// reservation, admin validation to a terminal state, read-only polling.
type Service struct {
	Pool     *pool.Pool
	Geocoder interface {
		Forward(ctx context.Context, address string) (models.Coordinate, error)
	}
	Store      storage.TripStore
	Passengers storage.PassengerStore
	Notifier   notify.Notifier
	WS         *dispatch.WSRegistry
	Fare       payments.FareHolder // optional
	ETAClient  eta.Client          // optional OSRM client
	ETACache   *eta.Cache          // optional ETA cache

	DefaultSpeedMps float64
	NotifyTimeout   time.Duration
	Logger          *slog.Logger

	// Now is swappable for schedule tests.
	Now func() time.Time

	validateMu sync.Mutex
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ParseSchedule validates the date/time pair and returns the trip instant.
// The instant must lie strictly in the future; there is no grace window.
func (s *Service) ParseSchedule(dateStr, timeStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	timeStr = strings.TrimSpace(timeStr)
	if dateStr == "" || timeStr == "" {
		return time.Time{}, fmt.Errorf("empty date or time: %w", models.ErrInvalidSchedule)
	}
	var day time.Time
	var err error
	parsed := false
	for _, layout := range acceptedDateLayouts {
		if day, err = time.ParseInLocation(layout, dateStr, time.Local); err == nil {
			parsed = true
			break
		}
	}
	if !parsed {
		return time.Time{}, fmt.Errorf("date %q: %w", dateStr, models.ErrInvalidSchedule)
	}
	clock, err := time.Parse(timeLayout, timeStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: %w", timeStr, models.ErrInvalidSchedule)
	}
	at := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.Local)
	if !at.After(s.now()) {
		return time.Time{}, fmt.Errorf("schedule %s is not in the future: %w", at.Format("02/01/2006 15:04"), models.ErrInvalidSchedule)
	}
	return at, nil
}

// Create validates the request, resolves both addresses, reserves the nearest
// free taxi and stores the request in the pending state. The reservation and
// the stored request form one unit: if the request cannot be saved, the taxi
// reservation is compensated with a release.
func (s *Service) Create(ctx context.Context, origin, destination, dateStr, timeStr, passengerPhone string) (*models.TripRequest, error) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)
	if origin == "" {
		return nil, fmt.Errorf("empty origin: %w", models.ErrInvalidInput)
	}
	if destination == "" {
		return nil, fmt.Errorf("empty destination: %w", models.ErrInvalidInput)
	}
	if passengerPhone == "" {
		return nil, fmt.Errorf("empty passenger phone: %w", models.ErrInvalidInput)
	}
	scheduledAt, err := s.ParseSchedule(dateStr, timeStr)
	if err != nil {
		return nil, err
	}

	originCoord, err := s.geocode(ctx, origin)
	if err != nil {
		return nil, err
	}
	destCoord, err := s.geocode(ctx, destination)
	if err != nil {
		return nil, err
	}

	taxi, err := s.Pool.ReserveNearest(originCoord)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req := &models.TripRequest{
		ID:             uuid.NewString(),
		Origin:         origin,
		OriginCoord:    originCoord,
		Destination:    destination,
		DestCoord:      destCoord,
		ScheduledAt:    scheduledAt,
		PassengerPhone: passengerPhone,
		TaxiID:         taxi.ID,
		LicensePlate:   taxi.LicensePlate,
		Status:         models.TripPending,
		PickupETASec:   s.pickupETA(taxi.Location, originCoord),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if s.Fare != nil {
		holdID, err := s.Fare.Hold(ctx, fareHoldCents, "eur", "")
		if err != nil {
			// fare holds are soft; dispatching the taxi matters more
			s.logger().Warn("fare hold failed", "trip_id", req.ID, "error", err)
		} else {
			req.PaymentHoldID = holdID
		}
	}

	if err := s.Store.SaveTrip(req); err != nil {
		// compensate the reservation, otherwise the taxi leaks in pending
		if relErr := s.Pool.Release(taxi.ID); relErr != nil {
			s.logger().Error("release after failed save", "taxi_id", taxi.ID, "error", relErr)
		}
		// the hold has no surviving request to capture or cancel it later
		if s.Fare != nil && req.PaymentHoldID != "" {
			if cancelErr := s.Fare.Cancel(ctx, req.PaymentHoldID); cancelErr != nil {
				s.logger().Error("cancel hold after failed save", "hold_id", req.PaymentHoldID, "error", cancelErr)
			}
		}
		return nil, fmt.Errorf("save trip request: %w", err)
	}
	observability.TripsCreated.Inc()
	s.logger().Info("trip request created", "trip_id", req.ID, "taxi_id", taxi.ID, "plate", taxi.LicensePlate)
	return req, nil
}

func (s *Service) geocode(ctx context.Context, address string) (models.Coordinate, error) {
	start := time.Now()
	c, err := s.Geocoder.Forward(ctx, address)
	observability.GeocodeLatency.Observe(time.Since(start).Seconds())
	return c, err
}

func (s *Service) pickupETA(from, to models.Coordinate) float64 {
	if s.ETACache != nil {
		if v, ok := s.ETACache.Get(from, to); ok {
			return v
		}
	}
	if s.ETAClient != nil {
		if v, err := s.ETAClient.EstimateSeconds(from, to); err == nil {
			if s.ETACache != nil {
				s.ETACache.Set(from, to, v)
			}
			return v
		}
	}
	return eta.EstimateSeconds(from, to, s.DefaultSpeedMps)
}

// Validate applies the admin decision. Only the first caller to observe the
// pending state transitions the request; later callers get ErrAlreadyFinalized.
// Notifications and payment capture happen after the state transition commits
// and never revert it.
func (s *Service) Validate(ctx context.Context, requestID string, accept bool) (*models.TripRequest, error) {
	s.validateMu.Lock()
	defer s.validateMu.Unlock()

	req, ok := s.Store.GetTrip(requestID)
	if !ok {
		return nil, fmt.Errorf("validate %s: %w", requestID, models.ErrTripNotFound)
	}
	if req.Status.Terminal() {
		return nil, fmt.Errorf("validate %s (status %s): %w", requestID, req.Status, models.ErrAlreadyFinalized)
	}

	if accept {
		if err := s.Pool.Commit(req.TaxiID, req.Destination); err != nil {
			return nil, fmt.Errorf("commit taxi %s: %w", req.TaxiID, err)
		}
		req.Status = models.TripValidated
	} else {
		if err := s.Pool.Release(req.TaxiID); err != nil {
			return nil, fmt.Errorf("release taxi %s: %w", req.TaxiID, err)
		}
		req.Status = models.TripRejected
	}
	req.UpdatedAt = s.now()
	if err := s.Store.UpdateTrip(req); err != nil {
		// the pool transition already happened; the store will catch up on the
		// next write, so log rather than fail the decision
		s.logger().Error("trip update failed", "trip_id", req.ID, "error", err)
	}
	observability.TripsValidated.WithLabelValues(decisionLabel(accept)).Inc()
	s.logger().Info("trip request validated", "trip_id", req.ID, "accepted", accept, "taxi_id", req.TaxiID)

	if accept {
		go s.afterAccept(*req)
	} else if s.Fare != nil && req.PaymentHoldID != "" {
		go s.cancelHold(*req)
	}
	return req, nil
}

func decisionLabel(accept bool) string {
	if accept {
		return "accepted"
	}
	return "rejected"
}

// afterAccept fires the post-transition side effects: driver and passenger
// confirmations plus payment capture. All best-effort.
func (s *Service) afterAccept(req models.TripRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout())
	defer cancel()

	when := req.ScheduledAt.Format("02/01/2006 15:04")

	if taxi, ok := s.Pool.Get(req.TaxiID); ok && taxi.DriverEmail != "" {
		body := fmt.Sprintf("You have a new confirmed trip.\nOrigin: %s\nDestination: %s\nPickup: %s\nPassenger phone: %s",
			req.Origin, req.Destination, when, req.PassengerPhone)
		if err := s.Notifier.Notify(ctx, taxi.DriverEmail, "New trip confirmed", body); err != nil {
			observability.NotifyFailures.Inc()
			s.logger().Warn("driver notification failed", "trip_id", req.ID, "error", err)
		}
	}
	if s.WS != nil {
		a := dispatch.Assignment{
			TripID:      req.ID,
			Origin:      req.Origin,
			Destination: req.Destination,
			ScheduledAt: when,
			Passenger:   req.PassengerPhone,
		}
		if err := s.WS.Push(req.TaxiID, a); err != nil && !errors.Is(err, dispatch.ErrNoSession) {
			s.logger().Warn("driver ws push failed", "trip_id", req.ID, "error", err)
		}
	}
	if s.Passengers != nil {
		if p, ok := s.Passengers.GetPassengerByPhone(req.PassengerPhone); ok {
			body := fmt.Sprintf("Your taxi is on the way.\nOrigin: %s\nDestination: %s\nPickup: %s\nLicense plate: %s",
				req.Origin, req.Destination, when, req.LicensePlate)
			if err := s.Notifier.Notify(ctx, p.Email, "New trip confirmed", body); err != nil {
				observability.NotifyFailures.Inc()
				s.logger().Warn("passenger notification failed", "trip_id", req.ID, "error", err)
			}
		} else {
			s.logger().Warn("passenger not found for notification", "trip_id", req.ID, "phone", req.PassengerPhone)
		}
	}
	if s.Fare != nil && req.PaymentHoldID != "" {
		if err := s.Fare.Capture(ctx, req.PaymentHoldID); err != nil {
			s.logger().Warn("fare capture failed", "trip_id", req.ID, "hold_id", req.PaymentHoldID, "error", err)
		}
	}
}

func (s *Service) cancelHold(req models.TripRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout())
	defer cancel()
	if err := s.Fare.Cancel(ctx, req.PaymentHoldID); err != nil {
		s.logger().Warn("fare cancel failed", "trip_id", req.ID, "hold_id", req.PaymentHoldID, "error", err)
	}
}

func (s *Service) notifyTimeout() time.Duration {
	if s.NotifyTimeout > 0 {
		return s.NotifyTimeout
	}
	return 5 * time.Second
}

// StatusView is the read-only snapshot returned to polling clients.
type StatusView struct {
	ID           string            `json:"id"`
	Status       models.TripStatus `json:"status"`
	LicensePlate string            `json:"license_plate"`
	PickupETASec float64           `json:"pickup_eta_seconds"`
}

// Status returns the current state of a trip request.
func (s *Service) Status(requestID string) (StatusView, error) {
	req, ok := s.Store.GetTrip(requestID)
	if !ok {
		return StatusView{}, fmt.Errorf("status %s: %w", requestID, models.ErrTripNotFound)
	}
	return StatusView{
		ID:           req.ID,
		Status:       req.Status,
		LicensePlate: req.LicensePlate,
		PickupETASec: req.PickupETASec,
	}, nil
}

// List returns every trip request, terminal ones included, oldest first.
func (s *Service) List() []*models.TripRequest {
	return s.Store.ListTrips()
}
