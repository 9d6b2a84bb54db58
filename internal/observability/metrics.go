package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "farum"

// Metrics wraps the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	turns                *prometheus.CounterVec
	turnDuration         prometheus.Histogram
	crisisDetections     *prometheus.CounterVec
	interventionsChosen  *prometheus.CounterVec
	validationRejections *prometheus.CounterVec
	feedback             *prometheus.CounterVec
	lexiconReloads       *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
	sessionsEvicted      prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by response kind",
		}, []string{"kind"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time to process one conversation turn",
			Buckets:   prometheus.DefBuckets,
		}),
		crisisDetections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crisis_detections_total",
			Help:      "Positive crisis assessments by type",
		}, []string{"type"}),
		interventionsChosen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interventions_selected_total",
			Help:      "Top-ranked intervention per standard turn",
		}, []string{"key"}),
		validationRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Candidates excluded by clinical validation",
		}, []string{"key"}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_total",
			Help:      "Recorded intervention outcomes",
		}, []string{"success"}),
		lexiconReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lexicon_reloads_total",
			Help:      "Lexicon reload attempts by status",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Idle sessions removed by the janitor",
		}),
	}
	reg.MustRegister(
		m.turns, m.turnDuration, m.crisisDetections, m.interventionsChosen,
		m.validationRejections, m.feedback, m.lexiconReloads,
		m.httpRequests, m.httpDuration, m.sessionsEvicted,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTurn(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(kind).Inc()
	m.turnDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveCrisis(crisisType string) {
	if m == nil {
		return
	}
	m.crisisDetections.WithLabelValues(crisisType).Inc()
}

func (m *Metrics) ObserveSelection(key string, rejected []string) {
	if m == nil {
		return
	}
	m.interventionsChosen.WithLabelValues(key).Inc()
	for _, r := range rejected {
		m.validationRejections.WithLabelValues(r).Inc()
	}
}

func (m *Metrics) ObserveFeedback(success bool) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (m *Metrics) ObserveLexiconReload(status string) {
	if m == nil {
		return
	}
	m.lexiconReloads.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) ObserveEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsEvicted.Add(float64(n))
}
