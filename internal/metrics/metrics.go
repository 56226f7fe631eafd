package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roombooking"

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created, by source (request or recurring).",
		},
		[]string{"source"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Successful booking status transitions, by target status.",
		},
		[]string{"status"},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Conflicts detected, by stage (create, approve, recurring).",
		},
		[]string{"stage"},
	)

	recurringRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurring_runs_total",
			Help:      "Recurring expansion runs, by result (ok, skipped, error).",
		},
		[]string{"result"},
	)

	recurringRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recurring_run_duration_seconds",
			Help:      "Duration of recurring expansion runs.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	recurringCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurring_bookings_created_total",
			Help:      "Bookings materialized from recurring rules.",
		},
	)

	dispatcherTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatcher_tasks_total",
			Help:      "Background tasks by name and result (ok, retry, failed, dropped).",
		},
		[]string{"task", "result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingsCreated,
			bookingTransitions,
			bookingConflicts,
			recurringRuns,
			recurringRunDuration,
			recurringCreated,
			dispatcherTasks,
			httpRequests,
		)
	})
}

func IncBookingCreated(source string) {
	bookingsCreated.WithLabelValues(source).Inc()
}

func IncTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

func IncConflict(stage string) {
	bookingConflicts.WithLabelValues(stage).Inc()
}

// ObserveRecurringRun records one expansion run and the bookings it created.
func ObserveRecurringRun(result string, seconds float64, created int) {
	recurringRuns.WithLabelValues(result).Inc()
	recurringRunDuration.Observe(seconds)
	recurringCreated.Add(float64(created))
}

func IncTask(task, result string) {
	dispatcherTasks.WithLabelValues(task, result).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string, code int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}
