package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devroom_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "devroom_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Session metrics
	SessionConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "devroom_session_connections",
			Help: "Currently connected session clients",
		},
	)

	SessionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devroom_session_rejections_total",
			Help: "Handshakes rejected, by reason",
		},
		[]string{"reason"},
	)

	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devroom_messages_relayed_total",
			Help: "Chat messages broadcast to rooms",
		},
	)

	// Generation metrics
	AIPrompts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devroom_ai_prompts_total",
			Help: "AI prompts dispatched, by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "fallback"
	)

	FileTreesApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devroom_file_trees_applied_total",
			Help: "File trees replaced via the synchronizer",
		},
	)

	// Runner metrics
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devroom_runs_started_total",
			Help: "Sandbox run sequences started",
		},
	)

	RunsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devroom_runs_failed_total",
			Help: "Sandbox runs that ended in a build or spawn failure",
		},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devroom_users_registered_total",
			Help: "Total users registered",
		},
	)

	ProjectsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devroom_projects_created_total",
			Help: "Total projects created",
		},
	)
)
