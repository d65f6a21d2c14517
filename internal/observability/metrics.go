package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	remindersScheduledTotal *prometheus.CounterVec
	remindersCancelledTotal *prometheus.CounterVec
	reminderDuplicatesTotal prometheus.Counter
	reminderDispatchTotal   *prometheus.CounterVec
	dispatchDuration        prometheus.Histogram
	deliveryJobsTotal       *prometheus.CounterVec
	deliveryDuration        prometheus.Histogram
	eventsProcessedTotal    *prometheus.CounterVec
	policyCacheTotal        *prometheus.CounterVec

	notificationsPublishedTotal *prometheus.CounterVec
	streamClientsActive         prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the reminder engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		remindersScheduledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminders_scheduled_total",
			Help: "Pending reminders created by reconciliation.",
		}, []string{"policy"})

		remindersCancelledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminders_cancelled_total",
			Help: "Pending reminders cancelled, by reason.",
		}, []string{"reason"})

		reminderDuplicatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_duplicate_inserts_total",
			Help: "Reminder inserts rejected because a pending reminder already existed.",
		})

		reminderDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_dispatch_total",
			Help: "Due reminders handled by the dispatcher, by outcome.",
		}, []string{"outcome"})

		dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reminder_dispatch_duration_seconds",
			Help:    "Duration of ProcessDue runs.",
			Buckets: prometheus.DefBuckets,
		})

		deliveryJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_jobs_total",
			Help: "Delivery queue jobs handled by the drain, by outcome.",
		}, []string{"outcome"})

		deliveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "delivery_drain_duration_seconds",
			Help:    "Duration of delivery queue drains.",
			Buckets: prometheus.DefBuckets,
		})

		eventsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domain_events_processed_total",
			Help: "Domain events applied by the reminder engine.",
		}, []string{"type", "result"})

		policyCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_policy_cache_total",
			Help: "Reminder policy cache lookups, by result.",
		}, []string{"result"})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications pushed to live subscribers.",
		}, []string{"kind"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_stream_clients_active",
			Help: "Connected SSE and websocket notification clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			remindersScheduledTotal, remindersCancelledTotal, reminderDuplicatesTotal,
			reminderDispatchTotal, dispatchDuration,
			deliveryJobsTotal, deliveryDuration,
			eventsProcessedTotal, policyCacheTotal,
			notificationsPublishedTotal, streamClientsActive,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

func RemindersScheduled() *prometheus.CounterVec {
	RegisterMetrics()
	return remindersScheduledTotal
}

func RemindersCancelled() *prometheus.CounterVec {
	RegisterMetrics()
	return remindersCancelledTotal
}

func ReminderDuplicates() prometheus.Counter {
	RegisterMetrics()
	return reminderDuplicatesTotal
}

func ReminderDispatch() *prometheus.CounterVec {
	RegisterMetrics()
	return reminderDispatchTotal
}

func DispatchDuration() prometheus.Histogram {
	RegisterMetrics()
	return dispatchDuration
}

func DeliveryJobs() *prometheus.CounterVec {
	RegisterMetrics()
	return deliveryJobsTotal
}

func DeliveryDuration() prometheus.Histogram {
	RegisterMetrics()
	return deliveryDuration
}

func EventsProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsProcessedTotal
}

func PolicyCache() *prometheus.CounterVec {
	RegisterMetrics()
	return policyCacheTotal
}

// NotificationsPublishedTotal counts notifications broadcast to subscribers.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// SSEClientsActive tracks connected live notification clients.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
