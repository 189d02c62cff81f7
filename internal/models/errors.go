package models

import "errors"

// Sentinel errors shared across the dispatch core. Callers branch with errors.Is;
// wrap with fmt.Errorf("...: %w", err) to add context.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrInvalidOrigin       = errors.New("invalid origin coordinate")
	ErrAddressNotFound     = errors.New("address not found")
	ErrGeocodingTimeout    = errors.New("geocoding timed out")
	ErrNoTaxiAvailable     = errors.New("no taxi available")
	ErrTaxiNotFound        = errors.New("taxi not found")
	ErrTaxiExists          = errors.New("taxi already registered")
	ErrTripNotFound        = errors.New("trip request not found")
	ErrPassengerNotFound   = errors.New("passenger not found")
	ErrAlreadyFinalized    = errors.New("trip request already finalized")
	ErrInvalidTransition   = errors.New("invalid taxi state transition")
	ErrNotificationFailed  = errors.New("notification failed")
	ErrNotificationTimeout = errors.New("notification timed out")
)
