package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskhealth_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deskhealth_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Simulation metrics
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskhealth_ticks_total",
			Help: "Total number of simulation ticks",
		},
	)

	SensorValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deskhealth_sensor_value",
			Help: "Most recent simulated sensor value",
		},
		[]string{"sensor"},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskhealth_alerts_total",
			Help: "Total number of alerts raised",
		},
		[]string{"kind", "transmitted"},
	)

	DrinkEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskhealth_drink_events_total",
			Help: "Total number of hydration events detected by the glass sensor",
		},
	)

	ModeChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskhealth_mode_changes_total",
			Help: "Total number of mode control messages by resolved mode",
		},
		[]string{"mode"},
	)

	// Publish metrics
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskhealth_publish_total",
			Help: "Total number of feed messages published",
		},
		[]string{"sink", "feed", "status"}, // status: success, failed
	)

	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deskhealth_publish_duration_seconds",
			Help:    "Time taken to publish a feed message",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"sink"},
	)

	MirrorBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskhealth_kafka_bytes_written_total",
			Help: "Total bytes written to the Kafka mirror",
		},
	)

	// Dispatcher metrics
	DispatchQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deskhealth_dispatch_queue_size",
			Help: "Current size of the outbound dispatch queue",
		},
	)

	DispatchDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskhealth_dispatch_dropped_total",
			Help: "Total number of envelopes dropped because the queue was full",
		},
	)

	// Live feed
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deskhealth_websocket_clients",
			Help: "Number of connected live feed clients",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskhealth_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
