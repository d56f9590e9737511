package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	NotesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edunexus_notes_created_total",
			Help: "Notes created, by author role and visibility",
		},
		[]string{"role", "visibility"},
	)

	ModerationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edunexus_moderation_decisions_total",
			Help: "Note approvals and rejections that changed state",
		},
		[]string{"decision"},
	)

	AssistantRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edunexus_assistant_requests_total",
			Help: "Notebook assistant requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	BusyRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edunexus_busy_rejections_total",
			Help: "Actions rejected because the same action was still in flight",
		},
		[]string{"action"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(NotesCreated)
		prometheus.MustRegister(ModerationDecisions)
		prometheus.MustRegister(AssistantRequests)
		prometheus.MustRegister(BusyRejections)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
