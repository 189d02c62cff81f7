package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"github.com/gorilla/mux"

	"github.com/example/taxi-dispatch/internal/config"
	"github.com/example/taxi-dispatch/internal/dispatch"
	"github.com/example/taxi-dispatch/internal/eta"
	"github.com/example/taxi-dispatch/internal/geo"
	"github.com/example/taxi-dispatch/internal/ingest"
	"github.com/example/taxi-dispatch/internal/notify"
	"github.com/example/taxi-dispatch/internal/passengers"
	"github.com/example/taxi-dispatch/internal/payments"
	"github.com/example/taxi-dispatch/internal/pool"
	"github.com/example/taxi-dispatch/internal/storage"
	"github.com/example/taxi-dispatch/internal/trips"
)

type Server struct {
	Pool       *pool.Pool
	Trips      *trips.Service
	Passengers *passengers.Service
	Kafka      *ingest.KafkaProducer
	WSReg      *dispatch.WSRegistry
	Fleet      *geo.RedisFleet // optional GEO read model for nearby queries

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires the dispatch core from config. Optional collaborators
// (Kafka, Stripe, OSRM, SMTP) are enabled only when configured, with in-memory
// or no-op fallbacks so the binary runs locally without setup.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		store = ps
	} else {
		store = storage.NewMemoryStore()
	}

	p := pool.New(logger, store)
	if err := p.Load(); err != nil {
		return nil, err
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.SMTPHost != "" {
		notifier = notify.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.NotifyTimeout)
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	var fare payments.FareHolder
	if cfg.StripeAPIKey != "" {
		fare = payments.NewStripeClient(cfg.StripeAPIKey)
	}

	var etaClient eta.Client
	if cfg.OSRMEndpoint != "" {
		etaClient = eta.NewOSRMClient(cfg.OSRMEndpoint)
	}

	var fleet *geo.RedisFleet
	if cfg.RedisAddr != "" {
		fleet = geo.NewRedisFleet(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisFleetKey)
	}

	wsreg := dispatch.NewWSRegistry()

	t := &trips.Service{
		Pool:            p,
		Geocoder:        geo.NewForwardGeocoder(cfg.GeocoderEndpoint, cfg.GeocoderAccessKey, cfg.GeocoderTimeout),
		Store:           store,
		Passengers:      store,
		Notifier:        notifier,
		WS:              wsreg,
		Fare:            fare,
		ETAClient:       etaClient,
		ETACache:        eta.NewCache(cfg.ETACacheTTL),
		DefaultSpeedMps: cfg.DefaultSpeedMps,
		NotifyTimeout:   cfg.NotifyTimeout,
		Logger:          logger,
	}

	pr := &passengers.Service{Store: store, Logger: logger}

	s := &Server{
		Pool:       p,
		Trips:      t,
		Passengers: pr,
		Kafka:      kp,
		WSReg:      wsreg,
		Fleet:      fleet,
		logger:     logger,
		mux:        mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s, nil
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
