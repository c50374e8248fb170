package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Session metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomchat_connections_active",
			Help: "Connections currently bound to an identity",
		},
	)

	IdentitiesOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomchat_identities_online",
			Help: "Identities with at least one live connection",
		},
	)

	BindFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_bind_failures_total",
			Help: "Connections rejected during identity binding",
		},
	)

	// Room metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_messages_sent_total",
			Help: "Room messages accepted",
		},
	)

	DirectMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_direct_messages_sent_total",
			Help: "Direct messages delivered",
		},
	)

	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_delivery_failures_total",
			Help: "Per-connection fan-out failures",
		},
	)

	TypingEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_typing_evictions_total",
			Help: "Typing entries removed by timeout",
		},
	)

	// Archive metrics
	ArchiveDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_archive_dropped_total",
			Help: "Persistence jobs dropped because the queue was full",
		},
	)

	ArchiveErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_archive_errors_total",
			Help: "Persistence jobs that failed",
		},
		[]string{"op"},
	)

	ArchiveLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roomchat_archive_latency_seconds",
			Help:    "Persistence job latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .5},
		},
	)
)
