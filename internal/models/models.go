package models

import "time"

// Coordinate is a (latitude, longitude) pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies within geographic range.
func (c Coordinate) Valid() bool {
	// NaN fails every comparison, so it is rejected here too.
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// TaxiStatus is the availability of a taxi, derived from its destination field.
type TaxiStatus string

const (
	TaxiFree    TaxiStatus = "free"
	TaxiPending TaxiStatus = "pending"
	TaxiBusy    TaxiStatus = "busy"
)

// DestinationPending marks a taxi tentatively reserved for a trip request that
// the admin has not decided on yet. An empty destination means the taxi is free;
// any other text is the destination of a confirmed trip.
const DestinationPending = "pending"

// Taxi is a vehicle in the fleet. Exactly one of free/pending/busy holds at any
// time, encoded in Destination.
type Taxi struct {
	ID           string     `json:"id"`
	LicensePlate string     `json:"license_plate"`
	Location     Coordinate `json:"location"`
	DriverEmail  string     `json:"driver_email"`
	Destination  string     `json:"destination"`
	Updated      time.Time  `json:"updated"`
}

// Status derives the availability state from the destination field.
func (t Taxi) Status() TaxiStatus {
	switch t.Destination {
	case "":
		return TaxiFree
	case DestinationPending:
		return TaxiPending
	default:
		return TaxiBusy
	}
}

// TripStatus is the lifecycle state of a trip request.
type TripStatus string

const (
	TripPending   TripStatus = "pending"
	TripValidated TripStatus = "validated"
	TripRejected  TripStatus = "rejected"
)

// Terminal reports whether the status admits no further transition.
func (s TripStatus) Terminal() bool { return s == TripValidated || s == TripRejected }

// TripRequest is a passenger's request for a taxi. While Pending it references a
// taxi held in the pending state; once Validated or Rejected it is immutable and
// kept only for the audit trail.
type TripRequest struct {
	ID             string     `json:"id"`
	Origin         string     `json:"origin"`
	OriginCoord    Coordinate `json:"origin_coord"`
	Destination    string     `json:"destination"`
	DestCoord      Coordinate `json:"dest_coord"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	PassengerPhone string     `json:"passenger_phone"`
	TaxiID         string     `json:"taxi_id"`
	LicensePlate   string     `json:"license_plate"`
	Status         TripStatus `json:"status"`
	PaymentHoldID  string     `json:"payment_hold_id,omitempty"`
	PickupETASec   float64    `json:"pickup_eta_seconds"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Passenger holds the contact details read by the notification step.
type Passenger struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	MobilePhone string    `json:"mobile_phone"`
	CreatedAt   time.Time `json:"created_at"`
}
