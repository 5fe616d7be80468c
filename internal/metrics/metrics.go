package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campus_chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_chat_messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"content_type"},
	)

	MessagesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campus_chat_messages_seen_total",
			Help: "Total messages marked seen",
		},
	)

	TypingSignals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campus_chat_typing_signals_total",
			Help: "Total typing signals relayed",
		},
	)

	// Realtime hub metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campus_chat_ws_connections_active",
			Help: "Currently registered realtime connections",
		},
	)

	RelayDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_chat_relay_dropped_total",
			Help: "Realtime events dropped because the target had no live connection",
		},
		[]string{"event"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_chat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
