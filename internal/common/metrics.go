package common

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "cinememe"

// DefaultBuckets provides a common set of histogram buckets in seconds.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	uploads         prometheus.Counter
	cropGestures    *prometheus.CounterVec
	cropConfirms    *prometheus.CounterVec
	cropRasterize   prometheus.Histogram
	overlayMoves    prometheus.Counter
	submissions     prometheus.Counter
	moderations     *prometheus.CounterVec
	likes           prometheus.Counter
	commandDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return NewMetricsWith(reg, reg)
}

func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   DefaultBuckets,
		}, []string{"method", "route"}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uploads_total",
			Help:      "Memes uploaded.",
		}),
		cropGestures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "crop",
			Name:      "gestures_total",
			Help:      "Crop drag gestures started, by mode.",
		}, []string{"mode"}),
		cropConfirms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "crop",
			Name:      "confirms_total",
			Help:      "Crop confirmations, by result.",
		}, []string{"result"}),
		cropRasterize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "crop",
			Name:      "rasterize_duration_seconds",
			Help:      "Time spent decoding, cropping and encoding a confirmed crop.",
			Buckets:   DefaultBuckets,
		}),
		overlayMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "overlay",
			Name:      "moves_total",
			Help:      "Caption anchor updates.",
		}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submissions_total",
			Help:      "Memes submitted with captions.",
		}),
		moderations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "moderations_total",
			Help:      "Moderation decisions, by resulting status.",
		}, []string{"status"}),
		likes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "likes_total",
			Help:      "Likes received.",
		}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of image command pipelines, by pipeline.",
			Buckets:   DefaultBuckets,
		}, []string{"pipeline"}),
	}
	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.uploads,
		m.cropGestures,
		m.cropConfirms,
		m.cropRasterize,
		m.overlayMoves,
		m.submissions,
		m.moderations,
		m.likes,
		m.commandDuration,
	)
	return m
}

// Handler exposes the registered metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies by route template.
func (m *Metrics) Middleware(skip ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			route := c.Path()
			for _, s := range skip {
				if route == s {
					return next(c)
				}
			}

			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			m.httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) IncUpload() {
	if m != nil {
		m.uploads.Inc()
	}
}

func (m *Metrics) IncCropGesture(mode string) {
	if m != nil {
		m.cropGestures.WithLabelValues(mode).Inc()
	}
}

// ObserveCropConfirm counts a confirm by result and, for successful ones,
// records how long rasterizing took.
func (m *Metrics) ObserveCropConfirm(err error, start time.Time) {
	if m == nil {
		return
	}
	if err != nil {
		m.cropConfirms.WithLabelValues("error").Inc()
		return
	}
	m.cropConfirms.WithLabelValues("ok").Inc()
	m.cropRasterize.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncOverlayMove() {
	if m != nil {
		m.overlayMoves.Inc()
	}
}

func (m *Metrics) IncSubmission() {
	if m != nil {
		m.submissions.Inc()
	}
}

func (m *Metrics) IncModeration(status string) {
	if m != nil {
		m.moderations.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncLike() {
	if m != nil {
		m.likes.Inc()
	}
}

func (m *Metrics) ObservePipeline(pipeline string, start time.Time) {
	if m != nil {
		m.commandDuration.WithLabelValues(pipeline).Observe(time.Since(start).Seconds())
	}
}
