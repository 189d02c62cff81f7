package passengers

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/taxi-dispatch/internal/models"
	"github.com/example/taxi-dispatch/internal/storage"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// mobilePattern matches Spanish mobile numbers: nine digits, leading 6.
var mobilePattern = regexp.MustCompile(`^6\d{8}$`)

// Service is the passenger contact directory. The notification step reads it
// by phone; registration is the only write.
type Service struct {
	Store  storage.PassengerStore
	Logger *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Register validates contact details and stores the passenger. Duplicate
// phone or email is rejected.
func (s *Service) Register(name, email, phone string) (*models.Passenger, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)

	if name == "" {
		return nil, fmt.Errorf("empty name: %w", models.ErrInvalidInput)
	}
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("email %q: %w", email, models.ErrInvalidInput)
	}
	if !mobilePattern.MatchString(phone) {
		return nil, fmt.Errorf("mobile phone %q: %w", phone, models.ErrInvalidInput)
	}
	if _, exists := s.Store.GetPassengerByPhone(phone); exists {
		return nil, fmt.Errorf("phone already registered: %w", models.ErrInvalidInput)
	}
	if _, exists := s.Store.GetPassengerByEmail(email); exists {
		return nil, fmt.Errorf("email already registered: %w", models.ErrInvalidInput)
	}

	p := &models.Passenger{
		ID:          uuid.NewString(),
		Name:        name,
		Email:       email,
		MobilePhone: phone,
		CreatedAt:   time.Now(),
	}
	if err := s.Store.SavePassenger(p); err != nil {
		return nil, fmt.Errorf("save passenger: %w", err)
	}
	s.logger().Info("passenger registered", "passenger_id", p.ID)
	return p, nil
}

// ByPhone looks up a passenger by mobile phone.
func (s *Service) ByPhone(phone string) (*models.Passenger, error) {
	p, ok := s.Store.GetPassengerByPhone(phone)
	if !ok {
		return nil, fmt.Errorf("phone %s: %w", phone, models.ErrPassengerNotFound)
	}
	return p, nil
}
