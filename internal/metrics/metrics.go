package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	lessonProgress *prometheus.CounterVec
	enrollments    *prometheus.CounterVec
	completions    prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		lessonProgress: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lesson_progress_updates_total",
				Help: "Lesson progress reports applied, by whether the lesson was completed",
			},
			[]string{"completed"},
		),
		enrollments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrollments_created_total",
				Help: "Enrollments created, by source (order or grant)",
			},
			[]string{"source"},
		),
		completions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "enrollment_completions_total",
				Help: "Enrollments that crossed the completion threshold",
			},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCounter,
		m.requestDuration,
		m.lessonProgress,
		m.enrollments,
		m.completions,
	)
	return m
}

func (m *Metrics) LessonProgressRecorded(completed bool) {
	m.lessonProgress.WithLabelValues(strconv.FormatBool(completed)).Inc()
}

func (m *Metrics) EnrollmentCreated(source string) {
	m.enrollments.WithLabelValues(source).Inc()
}

func (m *Metrics) EnrollmentCompleted() {
	m.completions.Inc()
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
