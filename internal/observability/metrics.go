package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TripsCreated       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_dispatch", Name: "trips_created_total", Help: "Trip requests created"})
	TripsValidated     = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "taxi_dispatch", Name: "trips_validated_total", Help: "Admin decisions on trip requests"}, []string{"decision"})
	ReservationsFailed = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_dispatch", Name: "reservations_failed_total", Help: "Reserve-nearest calls that found no free taxi"})
	NotifyFailures     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_dispatch", Name: "notify_failures_total", Help: "Notification dispatches that failed"})
	GeocodeLatency     = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "taxi_dispatch", Name: "geocode_latency_seconds", Help: "Forward geocoding latency", Buckets: prometheus.DefBuckets})
	TaxisFree          = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "taxi_dispatch", Name: "taxis_free", Help: "Taxis currently free"})
	TaxisTotal         = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "taxi_dispatch", Name: "taxis_total", Help: "Taxis registered with the pool"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxi_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxi_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
