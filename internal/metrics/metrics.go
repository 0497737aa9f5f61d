package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nine_ws_connections",
		Help: "Current number of admitted websocket sessions",
	})
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nine_active_rooms",
		Help: "Current number of open room runtimes",
	})
	WsMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nine_ws_messages_total",
		Help: "Total number of chat messages broadcast",
	})
	TracksPlayedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nine_tracks_played_total",
		Help: "Total number of tracks that started playing",
	})
	TrackFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nine_track_failures_total",
		Help: "Total number of tracks that failed to resolve",
	})
	WsFramesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nine_ws_frames_dropped_total",
		Help: "Total number of frames refused by a full session buffer",
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		WsConnections, ActiveRooms, WsMessagesTotal,
		TracksPlayedTotal, TrackFailuresTotal, WsFramesDroppedTotal,
		HttpRequestsTotal, HttpRequestDuration,
	)
}

// GinMiddleware records per-route request counts and latency.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
