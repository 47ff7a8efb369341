package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shifter_http_requests_total",
			Help: "HTTP requests by route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shifter_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	FilesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shifter_files_uploaded_total",
		Help: "Files accepted by the upload endpoint.",
	})

	UploadsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shifter_uploads_rejected_total",
			Help: "Uploads refused by validation, by reason code.",
		},
		[]string{"code"},
	)

	FilesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shifter_files_swept_total",
		Help: "Expired files permanently removed by cleanup.",
	})

	CleanupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shifter_cleanup_runs_total",
			Help: "Cleanup runs by outcome.",
		},
		[]string{"outcome"},
	)
)

// Middleware records request counts and latency labelled with the route
// template rather than the raw path, so tokens do not become label values.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
