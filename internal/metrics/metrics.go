package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grace_bookings_created_total",
		Help: "Bookings created, by initial status.",
	}, []string{"status"})

	PaymentsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grace_payments_reconciled_total",
		Help: "Pending payments reconciled against Stripe, by outcome.",
	}, []string{"outcome"})

	BookingsTimedOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grace_bookings_timed_out_total",
		Help: "Bookings cancelled by the payment timeout sweeper.",
	})

	JobErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grace_job_item_errors_total",
		Help: "Per-item errors swallowed by the scheduled jobs.",
	}, []string{"job"})
)
