// Package metrics holds the Prometheus collectors for identification,
// recommendation streaming, circuit breakers and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	reg prometheus.Gatherer

	IdentifyStages   *prometheus.CounterVec
	IdentifyDuration *prometheus.HistogramVec
	IdentifiedGames  prometheus.Histogram

	Streams        *prometheus.CounterVec
	StreamDeltas   prometheus.Counter
	StreamDuration prometheus.Histogram

	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		IdentifyStages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boardgamer_identify_stage_total",
			Help: "Identification stage outcomes",
		}, []string{"stage", "status"}),
		IdentifyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boardgamer_identify_stage_duration_seconds",
			Help:    "Duration of identification stages",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"stage"}),
		IdentifiedGames: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "boardgamer_identified_games",
			Help:    "Number of games returned per identification",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),

		Streams: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boardgamer_recommendation_streams_total",
			Help: "Recommendation streams by template and outcome",
		}, []string{"template", "outcome"}),
		StreamDeltas: f.NewCounter(prometheus.CounterOpts{
			Name: "boardgamer_recommendation_deltas_total",
			Help: "Text frames written to recommendation streams",
		}),
		StreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "boardgamer_recommendation_stream_duration_seconds",
			Help:    "Wall time of recommendation streams",
			Buckets: prometheus.DefBuckets,
		}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "boardgamer_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
		BreakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boardgamer_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		}, []string{"name", "from", "to"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boardgamer_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boardgamer_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.IdentifyStages.WithLabelValues(stage, status).Inc()
	m.IdentifyDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveIdentified(n int) {
	if m == nil {
		return
	}
	m.IdentifiedGames.Observe(float64(n))
}

func (m *Metrics) ObserveStream(template, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Streams.WithLabelValues(template, outcome).Inc()
	m.StreamDuration.Observe(d.Seconds())
}

func (m *Metrics) IncDelta() {
	if m == nil {
		return
	}
	m.StreamDeltas.Inc()
}

func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(state)
}

func (m *Metrics) ObserveBreakerTransition(name, from, to string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(name, from, to).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
