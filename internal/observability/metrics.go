package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trip_booking"

var (
	BookingsConfirmed = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "bookings_confirmed_total", Help: "Bookings committed to history"})
	PaymentFailures   = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "payment_failures_total", Help: "Payment phase failures by code"}, []string{"phase", "code"})
	PaymentLatency    = promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "payment_phase_seconds", Help: "Payment phase latency seconds"}, []string{"phase"})
	PersistenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "persistence_errors_total", Help: "Durable storage failures"}, []string{"op"})
	StaleResults      = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "stale_payment_results_total", Help: "Payment results dropped because the flow had moved on"})
	ActiveSessions    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "sessions_active", Help: "Number of open booking sessions"})
	FlowCancellations = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "flow_cancellations_total", Help: "Booking flows abandoned before confirmation"}, []string{"reason"})
	AgencyNotices     = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "agency_notifications_total", Help: "Agency notifications by outcome"}, []string{"outcome"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
