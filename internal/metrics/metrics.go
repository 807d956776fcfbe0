package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LockRequests counts AcquireLocks calls by outcome (ok, conflict, invalid, not_found, error)
	LockRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "lock_requests_total",
			Help:      "The total number of seat lock requests",
		},
		[]string{"outcome"},
	)

	// ConfirmRequests counts Confirm calls by outcome
	ConfirmRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "confirm_requests_total",
			Help:      "The total number of booking confirmations",
		},
		[]string{"outcome"},
	)

	// SeatsBooked total seats sold
	SeatsBooked = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "seats_booked_total",
			Help:      "The total number of seats booked",
		},
	)

	// LocksSwept total expired locks removed by the sweeper
	LocksSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "locks_swept_total",
			Help:      "The total number of expired seat locks removed",
		},
	)

	// ConfirmDuration time spent confirming bookings (summary with quantiles 0.5, 0.9, and 0.99)
	ConfirmDuration = promauto.NewSummary(
		prometheus.SummaryOpts{
			Namespace:  "booking",
			Name:       "confirm_duration_seconds",
			Help:       "The time spent confirming bookings",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
	)

	// SeatMapCache counts seat-map cache lookups by result (hit, miss)
	SeatMapCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatmap",
			Name:      "cache_lookups_total",
			Help:      "The total number of seat map cache lookups",
		},
		[]string{"result"},
	)

	// EventsPublished counts booking events handed to the broker by routing key and result
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "events",
			Name:      "published_total",
			Help:      "The total number of booking events published",
		},
		[]string{"routing_key", "result"},
	)
)
