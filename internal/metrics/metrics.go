package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "courtbook"

var (
	once sync.Once

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Reservations admitted by payment method.",
		},
		[]string{"payment_method"},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Rejected booking requests by conflict source.",
		},
		[]string{"source"},
	)

	waitlistTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_transitions_total",
			Help:      "Waitlist entry transitions by target status.",
		},
		[]string{"to"},
	)

	paymentSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_signals_total",
			Help:      "Payment outcome signals by outcome and handling result.",
		},
		[]string{"outcome", "result"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by kind and result.",
		},
		[]string{"kind", "result"},
	)

	calendarSync = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_sync_total",
			Help:      "Calendar sync task results.",
		},
		[]string{"result"},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Background sweep runs.",
		},
		[]string{"sweep"},
	)

	brokerMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_messages_total",
			Help:      "Message broker traffic by direction and result.",
		},
		[]string{"direction", "result"},
	)

	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Background sweep duration.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationsCreated,
			bookingConflicts,
			waitlistTransitions,
			paymentSignals,
			notifications,
			calendarSync,
			sweepRuns,
			sweepDuration,
			brokerMessages,
		)
	})
}

func IncReservationCreated(method string) {
	reservationsCreated.WithLabelValues(method).Inc()
}

func IncBookingConflict(source string) {
	bookingConflicts.WithLabelValues(source).Inc()
}

func IncWaitlistTransition(to string) {
	waitlistTransitions.WithLabelValues(to).Inc()
}

func IncPaymentSignal(outcome, result string) {
	paymentSignals.WithLabelValues(outcome, result).Inc()
}

func IncNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

func IncCalendarSync(result string) {
	calendarSync.WithLabelValues(result).Inc()
}

func IncBrokerMessage(direction, result string) {
	brokerMessages.WithLabelValues(direction, result).Inc()
}

// ObserveSweep counts a sweep run and records how long it took.
func ObserveSweep(sweep string, started time.Time) {
	sweepRuns.WithLabelValues(sweep).Inc()
	sweepDuration.WithLabelValues(sweep).Observe(time.Since(started).Seconds())
}
