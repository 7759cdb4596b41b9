// README: Prometheus metrics for status transitions, fan-out and streaming sessions.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	StatusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordertrack_status_transitions_total",
			Help: "Status update attempts by target status and outcome",
		},
		[]string{"to", "outcome"},
	)

	PublishesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ordertrack_publishes_total",
			Help: "Status events published to the broadcaster",
		},
	)

	DeliveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ordertrack_deliveries_total",
			Help: "Status events handed to subscriber channels",
		},
	)

	DeliveriesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ordertrack_deliveries_dropped_total",
			Help: "Status events dropped because a subscriber channel was full",
		},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ordertrack_subscribers",
			Help: "Live broadcaster subscriptions",
		},
	)

	StreamSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ordertrack_stream_sessions",
			Help: "Open streaming sessions by scope kind",
		},
		[]string{"scope"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordertrack_notifications_total",
			Help: "Customer notification attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	RelayMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordertrack_relay_messages_total",
			Help: "Cross-instance relay messages by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			StatusTransitionsTotal,
			PublishesTotal,
			DeliveriesTotal,
			DeliveriesDroppedTotal,
			Subscribers,
			StreamSessions,
			NotificationsTotal,
			RelayMessagesTotal,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}
