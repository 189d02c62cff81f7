package storage

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/taxi-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveTrip(t *models.TripRequest) error {
	_, err := p.db.Exec(`INSERT INTO trip_requests(id, origin, origin_lat, origin_lon, destination, dest_lat, dest_lon, scheduled_at, passenger_phone, taxi_id, license_plate, status, payment_hold_id, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		t.ID, t.Origin, t.OriginCoord.Lat, t.OriginCoord.Lon, t.Destination, t.DestCoord.Lat, t.DestCoord.Lon,
		t.ScheduledAt, t.PassengerPhone, t.TaxiID, t.LicensePlate, t.Status, t.PaymentHoldID, t.CreatedAt, t.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateTrip(t *models.TripRequest) error {
	_, err := p.db.Exec(`UPDATE trip_requests SET status=$1, payment_hold_id=$2, updated_at=$3 WHERE id=$4`,
		t.Status, t.PaymentHoldID, time.Now(), t.ID)
	return err
}

func (p *PostgresStore) GetTrip(id string) (*models.TripRequest, bool) {
	row := p.db.QueryRow(`SELECT id, origin, origin_lat, origin_lon, destination, dest_lat, dest_lon, scheduled_at, passenger_phone, taxi_id, license_plate, status, payment_hold_id, created_at, updated_at FROM trip_requests WHERE id=$1`, id)
	t, err := scanTrip(row)
	if err != nil {
		return nil, false
	}
	return t, true
}

func (p *PostgresStore) ListTrips() []*models.TripRequest {
	rows, err := p.db.Query(`SELECT id, origin, origin_lat, origin_lon, destination, dest_lat, dest_lon, scheduled_at, passenger_phone, taxi_id, license_plate, status, payment_hold_id, created_at, updated_at FROM trip_requests ORDER BY created_at`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []*models.TripRequest
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(r rowScanner) (*models.TripRequest, error) {
	var t models.TripRequest
	var status string
	err := r.Scan(&t.ID, &t.Origin, &t.OriginCoord.Lat, &t.OriginCoord.Lon, &t.Destination, &t.DestCoord.Lat, &t.DestCoord.Lon,
		&t.ScheduledAt, &t.PassengerPhone, &t.TaxiID, &t.LicensePlate, &status, &t.PaymentHoldID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = models.TripStatus(status)
	return &t, nil
}

func (p *PostgresStore) SaveTaxi(t *models.Taxi) error {
	_, err := p.db.Exec(`INSERT INTO taxis(id, license_plate, lat, lon, driver_email, destination, updated)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET license_plate=EXCLUDED.license_plate, lat=EXCLUDED.lat, lon=EXCLUDED.lon, driver_email=EXCLUDED.driver_email, destination=EXCLUDED.destination, updated=EXCLUDED.updated`,
		t.ID, t.LicensePlate, t.Location.Lat, t.Location.Lon, t.DriverEmail, t.Destination, t.Updated)
	return err
}

func (p *PostgresStore) UpdateTaxi(t *models.Taxi) error {
	_, err := p.db.Exec(`UPDATE taxis SET lat=$1, lon=$2, destination=$3, updated=$4 WHERE id=$5`,
		t.Location.Lat, t.Location.Lon, t.Destination, time.Now(), t.ID)
	return err
}

func (p *PostgresStore) ListTaxis() ([]*models.Taxi, error) {
	rows, err := p.db.Query(`SELECT id, license_plate, lat, lon, driver_email, destination, updated FROM taxis ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Taxi
	for rows.Next() {
		var t models.Taxi
		if err := rows.Scan(&t.ID, &t.LicensePlate, &t.Location.Lat, &t.Location.Lon, &t.DriverEmail, &t.Destination, &t.Updated); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SavePassenger(ps *models.Passenger) error {
	_, err := p.db.Exec(`INSERT INTO passengers(id, name, email, mobile_phone, created_at) VALUES($1,$2,$3,$4,$5)`,
		ps.ID, ps.Name, ps.Email, ps.MobilePhone, ps.CreatedAt)
	return err
}

func (p *PostgresStore) GetPassengerByPhone(phone string) (*models.Passenger, bool) {
	return p.getPassenger(`SELECT id, name, email, mobile_phone, created_at FROM passengers WHERE mobile_phone=$1`, phone)
}

func (p *PostgresStore) GetPassengerByEmail(email string) (*models.Passenger, bool) {
	return p.getPassenger(`SELECT id, name, email, mobile_phone, created_at FROM passengers WHERE email=$1`, email)
}

func (p *PostgresStore) getPassenger(query, arg string) (*models.Passenger, bool) {
	var ps models.Passenger
	err := p.db.QueryRow(query, arg).Scan(&ps.ID, &ps.Name, &ps.Email, &ps.MobilePhone, &ps.CreatedAt)
	if err != nil {
		return nil, false
	}
	return &ps, true
}

func (p *PostgresStore) Close() error { return p.db.Close() }
