package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewmaxx_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viewmaxx_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Auth Metrics
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewmaxx_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"},
	)

	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewmaxx_token_refreshes_total",
			Help: "Total number of refresh token rotations",
		},
		[]string{"outcome"},
	)

	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewmaxx_auth_failures_total",
			Help: "Total number of rejected authentications",
		},
		[]string{"reason"},
	)

	// Upload Metrics
	VideoUploadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewmaxx_video_uploads_total",
			Help: "Total number of video uploads",
		},
	)

	VideoUploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewmaxx_video_upload_size_bytes",
			Help:    "Size of uploaded videos in bytes",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 15), // 1MB to 16GB
		},
	)

	// Realtime Metrics
	SocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "viewmaxx_socket_connections",
			Help: "Number of active websocket connections",
		},
	)

	SocketEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewmaxx_socket_events_total",
			Help: "Total number of realtime events relayed",
		},
		[]string{"event"},
	)

	SocketRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewmaxx_socket_rejections_total",
			Help: "Total number of rejected socket handshakes",
		},
		[]string{"reason"},
	)
)

// RecordHTTPRequest records a completed HTTP request
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
